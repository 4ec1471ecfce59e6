// Package doctor runs interactive end-to-end diagnostics: microphone
// capture, WAV framing and the remote analyzer connection.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"vocap/audio"
	"vocap/recorder"
	"vocap/transport"
	"vocap/wav"
)

// Run executes the diagnostic checks and returns an exit code
// (0=all pass, 1=any fail). endpoint and apiKey come from the caller's
// flags; when empty the analyzer checks prompt for them.
func Run(endpoint, apiKey string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("vocap doctor - interactive system diagnostics")
	fmt.Println("=============================================")

	allPass := true

	sample := checkMicrophone()
	if sample == nil {
		allPass = false
	}
	if allPass && !checkAnalyzer(endpoint, apiKey, sample) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

// checkMicrophone records a short sample and verifies the framed
// container. Returns the sample on success, nil on failure.
func checkMicrophone() *recorder.Sample {
	fmt.Println()
	fmt.Println("[1/2] Microphone capture")

	reader := bufio.NewReader(os.Stdin)

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return nil
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return nil
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return nil
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Println("  FAIL: invalid choice")
			return nil
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	fmt.Println()
	fmt.Print("Press Enter and sustain a vowel for 3 seconds...")
	reader.ReadString('\n')

	capture, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: 16000,
		Channels:   1,
	})
	if err != nil {
		fmt.Printf("  FAIL: opening capture: %v\n", err)
		return nil
	}
	defer capture.Close()

	session := recorder.New(capture, recorder.Config{
		SampleRate:  16000,
		Channels:    1,
		MaxDuration: 3 * time.Second,
		OnTick:      func(int) { fmt.Print(".") },
	})
	fmt.Print("  Recording")
	if err := session.Start(); err != nil {
		fmt.Printf("\n  FAIL: recording error: %v\n", err)
		return nil
	}
	<-session.Done()
	sample := session.Stop()
	fmt.Println(" done")

	if sample.Empty() {
		fmt.Println("  FAIL: no audio captured")
		return nil
	}

	container := sample.WAV()
	if !wav.Validate(container) {
		fmt.Println("  FAIL: captured audio does not frame as a valid WAV")
		return nil
	}
	info, err := wav.ParseInfo(container)
	if err != nil {
		fmt.Printf("  FAIL: container header: %v\n", err)
		return nil
	}
	fmt.Printf("  PASS: %.1f KB captured (%d Hz, %d channel)\n",
		float64(len(container))/1024, info.SampleRate, info.Channels)
	return sample
}

func checkAnalyzer(endpoint, apiKey string, sample *recorder.Sample) bool {
	fmt.Println()
	fmt.Println("[2/2] Voice analyzer connection")

	reader := bufio.NewReader(os.Stdin)

	if endpoint == "" {
		fmt.Print("Analyzer endpoint URL: ")
		endpoint, _ = reader.ReadString('\n')
		endpoint = strings.TrimSpace(endpoint)
	}
	if endpoint == "" {
		fmt.Println("  FAIL: endpoint required")
		return false
	}
	if apiKey == "" {
		fmt.Print("API key: ")
		apiKey, _ = reader.ReadString('\n')
		apiKey = strings.TrimSpace(apiKey)
	}
	if apiKey == "" {
		fmt.Println("  FAIL: API key required")
		return false
	}

	client := transport.New(transport.Config{
		BaseURL: endpoint,
		APIKey:  apiKey,
		Timeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		fmt.Printf("  FAIL: health check: %v\n", err)
		return false
	}
	fmt.Println("  Health check OK, analyzing the recorded sample...")

	v, err := client.Analyze(ctx, transport.Payload{Data: sample.WAV(), Format: "wav"})
	if err != nil {
		fmt.Printf("  FAIL: analyze: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: analyzer responded (MDVP:Fo %.3f Hz, HNR %.3f)\n", v.MDVPFo, v.HNR)
	return true
}
