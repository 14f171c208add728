// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package knowledge

import (
	"fmt"
	"math"
	"slices"
)

// ClusterParams bounds cluster sizes. Zero sizes are derived automatically.
type ClusterParams struct {
	// Granularity sets the automatic minimum cluster size as a fraction of
	// the input. Used only when MinSize is zero.
	Granularity float64
	MinSize     int
	MaxSize     int
}

// Validate checks parameter ranges.
func (p ClusterParams) Validate() error {
	if p.MinSize < 0 || p.MaxSize < 0 {
		return fmt.Errorf("%w: cluster sizes must not be negative", ErrInvalidParams)
	}
	if p.MinSize == 0 && (p.Granularity <= 0 || p.Granularity > 1) {
		return fmt.Errorf("%w: granularity must be in (0, 1], got %v", ErrInvalidParams, p.Granularity)
	}
	if p.MinSize > 0 && p.MaxSize > 0 && p.MaxSize < p.MinSize {
		return fmt.Errorf("%w: max cluster size %d below min %d", ErrInvalidParams, p.MaxSize, p.MinSize)
	}
	return nil
}

// minClusterSize resolves the effective minimum for n points.
func (p ClusterParams) minClusterSize(n int) int {
	size := p.MinSize
	if size <= 0 {
		size = max(2, int(math.Ceil(p.Granularity*float64(n))))
	}
	return min(size, n)
}

// Clusterer groups vectors. Groups hold indices into vectors in ascending
// order and are returned in discovery order; noise lists the leftover indices.
type Clusterer interface {
	Cluster(vectors [][]float32, params ClusterParams) (groups [][]int, noise []int, err error)
}

// DensityClusterer is a DBSCAN variant over cosine distance. The
// neighbourhood radius is the median distance from each point to its
// (minSize-1)-th nearest neighbour, so no radius has to be configured.
type DensityClusterer struct{}

var _ Clusterer = (*DensityClusterer)(nil)

const (
	unvisited = -2
	noiseMark = -1

	distanceTolerance = 1e-9
)

// Cluster implements Clusterer.
func (c *DensityClusterer) Cluster(vectors [][]float32, params ClusterParams) ([][]int, []int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil, nil
	}

	minSize := params.minClusterSize(n)
	dist := distanceMatrix(vectors)
	eps := neighbourRadius(dist, minSize-1)

	neighbours := func(i int) []int {
		var out []int
		for j, d := range dist[i] {
			if d <= eps+distanceTolerance {
				out = append(out, j)
			}
		}
		return out
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for i := range n {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbours(i)
		if len(seeds) < minSize {
			labels[i] = noiseMark
			continue
		}

		cluster := next
		next++
		labels[i] = cluster
		for q := 0; q < len(seeds); q++ {
			j := seeds[q]
			if labels[j] == noiseMark {
				// border point, claimed by the first cluster that reaches it
				labels[j] = cluster
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if more := neighbours(j); len(more) >= minSize {
				seeds = append(seeds, more...)
			}
		}
	}

	found := make([][]int, next)
	var noise []int
	for i, label := range labels {
		if label == noiseMark {
			noise = append(noise, i)
			continue
		}
		found[label] = append(found[label], i)
	}

	var groups [][]int
	for _, members := range found {
		if len(members) < minSize {
			noise = append(noise, members...)
			continue
		}
		groups = append(groups, split(members, params.MaxSize)...)
	}
	slices.Sort(noise)
	return groups, noise, nil
}

// split cuts members into runs of at most size. The remainder forms its own group.
func split(members []int, size int) [][]int {
	if size <= 0 || len(members) <= size {
		return [][]int{members}
	}
	return slices.Collect(slices.Chunk(members, size))
}

// distanceMatrix computes pairwise cosine distances.
func distanceMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		var s float64
		for _, x := range v {
			s += float64(x) * float64(x)
		}
		norms[i] = math.Sqrt(s)
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := cosineDistance(vectors[i], vectors[j], norms[i], norms[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

func cosineDistance(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 1
	}
	var dot float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
	}
	d := 1 - dot/(normA*normB)
	if d < 0 {
		return 0
	}
	return d
}

// neighbourRadius returns the median over all points of the distance to the
// k-th nearest other point. k=0 yields 0.
func neighbourRadius(dist [][]float64, k int) float64 {
	if k <= 0 {
		return 0
	}
	kth := make([]float64, len(dist))
	for i, row := range dist {
		others := make([]float64, 0, len(row)-1)
		for j, d := range row {
			if j != i {
				others = append(others, d)
			}
		}
		slices.Sort(others)
		kth[i] = others[min(k, len(others))-1]
	}
	slices.Sort(kth)
	mid := len(kth) / 2
	if len(kth)%2 == 1 {
		return kth[mid]
	}
	return (kth[mid-1] + kth[mid]) / 2
}
