// Package features defines the canonical voice-feature vector and its
// mapping to the remote analyzer's wire form.
package features

// VoiceFeatures is the canonical fixed-shape record consumed by downstream
// prediction logic. Field names follow the MDVP naming of the reference
// dataset; spread1/spread2 are lower-case there by convention.
type VoiceFeatures struct {
	MDVPFo        float64 `json:"MDVP_Fo"`
	MDVPFhi       float64 `json:"MDVP_Fhi"`
	MDVPFlo       float64 `json:"MDVP_Flo"`
	MDVPJitter    float64 `json:"MDVP_Jitter"`
	MDVPJitterAbs float64 `json:"MDVP_Jitter_Abs"`
	MDVPRAP       float64 `json:"MDVP_RAP"`
	MDVPPPQ       float64 `json:"MDVP_PPQ"`
	JitterDDP     float64 `json:"Jitter_DDP"`
	MDVPShimmer   float64 `json:"MDVP_Shimmer"`
	MDVPShimmerDB float64 `json:"MDVP_Shimmer_dB"`
	ShimmerAPQ3   float64 `json:"Shimmer_APQ3"`
	ShimmerAPQ5   float64 `json:"Shimmer_APQ5"`
	MDVPAPQ       float64 `json:"MDVP_APQ"`
	ShimmerDDA    float64 `json:"Shimmer_DDA"`
	NHR           float64 `json:"NHR"`
	HNR           float64 `json:"HNR"`
	RPDE          float64 `json:"RPDE"`
	DFA           float64 `json:"DFA"`
	Spread1       float64 `json:"spread1"`
	Spread2       float64 `json:"spread2"`
	D2            float64 `json:"D2"`
	PPE           float64 `json:"PPE"`
}

// Remote is the analyzer's lower-camel wire representation. All 22 names are
// declared so the mapping is total in both directions; the analyzer itself
// only produces a subset, and the finer-grained jitter/shimmer decompositions
// default to zero when absent.
type Remote struct {
	MdvpFo        float64 `json:"mdvpFo"`
	MdvpFhi       float64 `json:"mdvpFhi"`
	MdvpFlo       float64 `json:"mdvpFlo"`
	MdvpJitter    float64 `json:"mdvpJitter"`
	MdvpJitterAbs float64 `json:"mdvpJitterAbs"`
	MdvpRap       float64 `json:"mdvpRap"`
	MdvpPpq       float64 `json:"mdvpPpq"`
	JitterDdp     float64 `json:"jitterDdp"`
	MdvpShimmer   float64 `json:"mdvpShimmer"`
	MdvpShimmerDb float64 `json:"mdvpShimmerDb"`
	ShimmerApq3   float64 `json:"shimmerApq3"`
	ShimmerApq5   float64 `json:"shimmerApq5"`
	MdvpApq       float64 `json:"mdvpApq"`
	ShimmerDda    float64 `json:"shimmerDda"`
	Nhr           float64 `json:"nhr"`
	Hnr           float64 `json:"hnr"`
	Rpde          float64 `json:"rpde"`
	Dfa           float64 `json:"dfa"`
	Spread1       float64 `json:"spread1"`
	Spread2       float64 `json:"spread2"`
	D2            float64 `json:"d2"`
	Ppe           float64 `json:"ppe"`
}

// Canonical maps the wire form onto the canonical record field by field.
func (r Remote) Canonical() VoiceFeatures {
	return VoiceFeatures{
		MDVPFo:        r.MdvpFo,
		MDVPFhi:       r.MdvpFhi,
		MDVPFlo:       r.MdvpFlo,
		MDVPJitter:    r.MdvpJitter,
		MDVPJitterAbs: r.MdvpJitterAbs,
		MDVPRAP:       r.MdvpRap,
		MDVPPPQ:       r.MdvpPpq,
		JitterDDP:     r.JitterDdp,
		MDVPShimmer:   r.MdvpShimmer,
		MDVPShimmerDB: r.MdvpShimmerDb,
		ShimmerAPQ3:   r.ShimmerApq3,
		ShimmerAPQ5:   r.ShimmerApq5,
		MDVPAPQ:       r.MdvpApq,
		ShimmerDDA:    r.ShimmerDda,
		NHR:           r.Nhr,
		HNR:           r.Hnr,
		RPDE:          r.Rpde,
		DFA:           r.Dfa,
		Spread1:       r.Spread1,
		Spread2:       r.Spread2,
		D2:            r.D2,
		PPE:           r.Ppe,
	}
}

// FromCanonical converts back to the wire form, for callers that submit
// feature vectors to remote prediction services.
func FromCanonical(v VoiceFeatures) Remote {
	return Remote{
		MdvpFo:        v.MDVPFo,
		MdvpFhi:       v.MDVPFhi,
		MdvpFlo:       v.MDVPFlo,
		MdvpJitter:    v.MDVPJitter,
		MdvpJitterAbs: v.MDVPJitterAbs,
		MdvpRap:       v.MDVPRAP,
		MdvpPpq:       v.MDVPPPQ,
		JitterDdp:     v.JitterDDP,
		MdvpShimmer:   v.MDVPShimmer,
		MdvpShimmerDb: v.MDVPShimmerDB,
		ShimmerApq3:   v.ShimmerAPQ3,
		ShimmerApq5:   v.ShimmerAPQ5,
		MdvpApq:       v.MDVPAPQ,
		ShimmerDda:    v.ShimmerDDA,
		Nhr:           v.NHR,
		Hnr:           v.HNR,
		Rpde:          v.RPDE,
		Dfa:           v.DFA,
		Spread1:       v.Spread1,
		Spread2:       v.Spread2,
		D2:            v.D2,
		Ppe:           v.PPE,
	}
}

// Names lists the canonical field names in dataset order.
func Names() []string {
	return []string{
		"MDVP_Fo", "MDVP_Fhi", "MDVP_Flo", "MDVP_Jitter",
		"MDVP_Jitter_Abs", "MDVP_RAP", "MDVP_PPQ", "Jitter_DDP",
		"MDVP_Shimmer", "MDVP_Shimmer_dB", "Shimmer_APQ3", "Shimmer_APQ5",
		"MDVP_APQ", "Shimmer_DDA", "NHR", "HNR", "RPDE", "DFA",
		"spread1", "spread2", "D2", "PPE",
	}
}

// Values returns the vector in the same order as Names.
func (v VoiceFeatures) Values() []float64 {
	return []float64{
		v.MDVPFo, v.MDVPFhi, v.MDVPFlo, v.MDVPJitter,
		v.MDVPJitterAbs, v.MDVPRAP, v.MDVPPPQ, v.JitterDDP,
		v.MDVPShimmer, v.MDVPShimmerDB, v.ShimmerAPQ3, v.ShimmerAPQ5,
		v.MDVPAPQ, v.ShimmerDDA, v.NHR, v.HNR, v.RPDE, v.DFA,
		v.Spread1, v.Spread2, v.D2, v.PPE,
	}
}
