// Package metrics computes informational measurements of the transformed
// output. Nothing here ever fails a run.
package metrics

import (
	"math"
	"os"
)

// ArtifactReport summarizes a produced output artifact.
type ArtifactReport struct {
	SizeBytes int64
	// Entropy is the Shannon entropy of the artifact's bytes, in bits per
	// byte (0 for empty or single-valued content, up to 8 for uniformly
	// random content). A rough obfuscation-strength signal, nothing more.
	Entropy float64
}

// Measure stats and reads the artifact at path.
func Measure(path string) (ArtifactReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ArtifactReport{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ArtifactReport{}, err
	}

	return ArtifactReport{
		SizeBytes: info.Size(),
		Entropy:   shannonEntropy(data),
	}, nil
}

func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
