package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"vocap/audio"
	"vocap/doctor"
	"vocap/encoder"
	"vocap/features"
	"vocap/log"
	"vocap/recorder"
	"vocap/shutdown"
	"vocap/transport"
)

var version = "dev"

func main() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	outFlag := flag.String("o", "", "Save recording to file (.wav or .flac) instead of analyzing")
	endpointFlag := flag.String("endpoint", "", "Voice analyzer base URL")
	apiKeyFlag := flag.String("apikey", "", "Analyzer API key (default: VOCAP_API_KEY)")
	maxDurFlag := flag.Duration("maxdur", recorder.DefaultMaxDuration, "Recording-time ceiling")
	fakeFlag := flag.String("fake", "", "Replay a WAV file instead of capturing the microphone")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("vocap %s\n", version)
		os.Exit(0)
	}

	apiKey := *apiKeyFlag
	if apiKey == "" {
		apiKey = os.Getenv("VOCAP_API_KEY")
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*endpointFlag, apiKey))
	}

	if *outFlag == "" && *endpointFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: pick one delivery path: -o <file> or -endpoint <url>")
		os.Exit(1)
	}
	if *outFlag != "" && *endpointFlag != "" {
		fmt.Fprintln(os.Stderr, "Error: -o and -endpoint are mutually exclusive")
		os.Exit(1)
	}
	if *endpointFlag != "" && apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: analyzing requires an API key (-apikey or VOCAP_API_KEY)")
		os.Exit(1)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	var actx audio.Context
	if *fakeFlag != "" {
		actx, err = audio.NewFakeContextFromWAV(*fakeFlag, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading replay file: %v\n", err)
			os.Exit(1)
		}
	} else {
		actx, err = audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	capture, err := actx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()

	maxDur := *maxDurFlag
	session := recorder.New(capture, recorder.Config{
		MaxDuration: maxDur,
		OnTick: func(elapsed int) {
			fmt.Printf("\r  Recording... %ds / %ds ", elapsed, int(maxDur/time.Second))
		},
	})

	deviceName := "system default"
	if selectedDevice != nil {
		deviceName = selectedDevice.Name
	}

	if err := session.Start(); err != nil {
		log.Errorf("recording start error: %v", err)
		if errors.Is(err, audio.ErrPermissionDenied) {
			fmt.Fprintln(os.Stderr, "Error: microphone access denied")
		} else {
			fmt.Fprintf(os.Stderr, "Error starting recording: %v\n", err)
		}
		os.Exit(1)
	}
	log.SessionStart(deviceName, int(captureConfig.SampleRate), int(captureConfig.Channels))
	fmt.Printf("Recording from %s. Press Enter to stop (auto-stops after %s).\n", deviceName, maxDur)

	// Enter, a signal, or the ceiling all end the recording through the
	// same stop path.
	enter := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(enter)
	}()
	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)

	autoStopped := false
	select {
	case <-enter:
	case <-sig:
		fmt.Println()
	case <-session.Done():
		autoStopped = true
	}

	sample := session.Stop()
	fmt.Println()
	log.RecordingFinished(sample.Duration().Seconds(), float64(len(sample.PCM))/1024, autoStopped)

	if sample.Empty() {
		fmt.Println("No audio captured.")
		return
	}
	fmt.Printf("Captured %.1fs of audio.\n", sample.Duration().Seconds())

	if *outFlag != "" {
		if err := session.SaveTo(*outFlag); err != nil {
			log.Errorf("save error: %v", err)
			fmt.Fprintf(os.Stderr, "Error saving recording: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved to %s\n", *outFlag)
		return
	}

	client := transport.New(transport.Config{
		BaseURL: *endpointFlag,
		APIKey:  apiKey,
		Metrics: func(attempt int, m *transport.NetworkMetrics) {
			log.Upload(log.UploadMetrics{
				Attempt:      attempt,
				DNSTimeMs:    float64(m.DNS.Microseconds()) / 1000,
				ConnectMs:    float64(m.TCP.Microseconds()) / 1000,
				TLSTimeMs:    float64(m.TLS.Microseconds()) / 1000,
				TTFBMs:       float64(m.TTFB.Microseconds()) / 1000,
				DownloadMs:   float64(m.Download.Microseconds()) / 1000,
				TotalTimeMs:  float64(m.Total.Microseconds()) / 1000,
				ConnReused:   m.ConnReused,
				TLSProto:     m.TLSProto,
				ResponseSize: m.ResponseSize,
			})
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sig
		cancel()
	}()

	fmt.Println("Analyzing...")
	vector, err := session.Analyze(ctx, client)
	cancel()
	if err != nil {
		log.Errorf("analyze error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	names := features.Names()
	values := vector.Values()
	fmt.Println()
	for i, name := range names {
		fmt.Printf("  %-16s %12.6f\n", name, values[i])
	}
	log.Result(names, values)
}
