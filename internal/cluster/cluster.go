// Package cluster groups embedded prompts with a single greedy pass: each
// unclaimed item seeds a cluster and claims every later item whose cosine
// similarity to the seed clears the threshold. Assignment is first-seed-wins
// and depends on input order, which keeps results reproducible for a given
// log snapshot.
package cluster

import (
	"math"
	"sort"
)

// Item is one embedded text to be clustered.
type Item struct {
	Text   string
	Vector []float32
}

// Cluster is a group of similar items.
type Cluster struct {
	// Members holds the texts in the order they were claimed; the seed is
	// always first.
	Members []string

	// Centroid is the arithmetic mean of the member vectors.
	Centroid []float64
}

// Size returns the member count.
func (c Cluster) Size() int { return len(c.Members) }

// Config holds clustering parameters.
type Config struct {
	// Threshold is the minimum seed similarity to claim an item.
	Threshold float64

	// MinClusterSize drops clusters with fewer members than this. Items
	// claimed by a dropped cluster are consumed, not re-seeded.
	MinClusterSize int

	// MaxClusters caps the result, largest first. 0 means no cap.
	MaxClusters int
}

// Group clusters items by similarity to each seed. Surviving clusters are
// returned largest first; ties keep seed order.
func Group(items []Item, cfg Config) []Cluster {
	processed := make([]bool, len(items))
	var clusters []Cluster

	for i := range items {
		if processed[i] {
			continue
		}
		processed[i] = true

		seed := items[i]
		members := []string{seed.Text}
		vectors := [][]float32{seed.Vector}

		for j := i + 1; j < len(items); j++ {
			if processed[j] {
				continue
			}
			if cosineSimilarity(seed.Vector, items[j].Vector) >= cfg.Threshold {
				members = append(members, items[j].Text)
				vectors = append(vectors, items[j].Vector)
				processed[j] = true
			}
		}

		if len(members) < cfg.MinClusterSize {
			continue
		}
		clusters = append(clusters, Cluster{
			Members:  members,
			Centroid: centroid(vectors),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Members) > len(clusters[j].Members)
	})

	if cfg.MaxClusters > 0 && len(clusters) > cfg.MaxClusters {
		clusters = clusters[:cfg.MaxClusters]
	}
	return clusters
}

// centroid returns the arithmetic mean of the vectors. Vectors shorter than
// the seed's dimension contribute only the positions they have.
func centroid(vectors [][]float32) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i := 0; i < len(v) && i < len(mean); i++ {
			mean[i] += float64(v[i])
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vectors))
	}
	return mean
}

// cosineSimilarity is the standard dot product over magnitudes. Mismatched
// dimensions or a zero-magnitude vector yield 0, never an error.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
