// internal/novelty/archive.go

// Package novelty tracks the structural diversity of applied mutations. The
// bounded archive of past feature vectors is the pressure that keeps the
// pipeline from collapsing onto the same few edits, which is the most common
// failure mode of unconstrained LLM-driven self-editing.
package novelty

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options tunes archive behavior. Zero values select the defaults.
type Options struct {
	Capacity      int     // bounded record count (default 200)
	KNeighbors    int     // k for kNN novelty (default 5, clamped to size)
	FitnessWeight float64 // Pareto ordering blend (default 0.6)
	NoveltyWeight float64 // Pareto ordering blend (default 0.4)
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = 200
	}
	if o.KNeighbors <= 0 {
		o.KNeighbors = 5
	}
	if o.FitnessWeight == 0 && o.NoveltyWeight == 0 {
		o.FitnessWeight, o.NoveltyWeight = 0.6, 0.4
	}
	return o
}

// Archive stores a bounded history of (features, fitness, metadata) tuples.
// Add and eviction are serialized; Novelty queries may run concurrently with
// each other but not with a mutating Add.
type Archive struct {
	logger *zap.Logger
	opts   Options

	mu      sync.RWMutex
	records []schemas.NoveltyRecord
}

// NewArchive creates an empty archive.
func NewArchive(logger *zap.Logger, opts Options) *Archive {
	return &Archive{
		logger: logger.Named("novelty_archive"),
		opts:   opts.withDefaults(),
	}
}

// Len reports the current record count.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Novelty scores features in [0,1] against the archive: the average cosine
// distance to the k nearest archived vectors. An empty archive yields 1.0,
// maximal novelty, since there is nothing to compare against.
func (a *Archive) Novelty(features schemas.FeatureVector) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.noveltyLocked(features, -1)
}

// noveltyLocked computes novelty with the read (or write) lock held. skip
// excludes one record index from the comparison set; pass -1 to include all.
func (a *Archive) noveltyLocked(features schemas.FeatureVector, skip int) float64 {
	distances := make([]float64, 0, len(a.records))
	for i := range a.records {
		if i == skip {
			continue
		}
		distances = append(distances, cosineDistance(features, a.records[i].Features))
	}
	if len(distances) == 0 {
		return 1.0
	}
	sort.Float64s(distances)

	k := a.opts.KNeighbors
	if k > len(distances) {
		k = len(distances)
	}
	sum := 0.0
	for _, d := range distances[:k] {
		sum += d
	}
	return clamp01(sum / float64(k))
}

// Add appends a record. When the capacity is exceeded, every record's novelty
// is recomputed against the rest of the archive and the lowest is evicted.
func (a *Archive) Add(features schemas.FeatureVector, fitness float64, metadata map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := schemas.NoveltyRecord{
		Features:  features,
		Fitness:   fitness,
		Novelty:   a.noveltyLocked(features, -1),
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	a.records = append(a.records, rec)

	if len(a.records) <= a.opts.Capacity {
		return
	}

	lowest, lowestIdx := math.Inf(1), 0
	for i := range a.records {
		n := a.noveltyLocked(a.records[i].Features, i)
		a.records[i].Novelty = n
		if n < lowest {
			lowest, lowestIdx = n, i
		}
	}
	a.records = append(a.records[:lowestIdx], a.records[lowestIdx+1:]...)
	a.logger.Debug("Evicted lowest-novelty record.", zap.Float64("novelty", lowest))
}

// ScoredCandidate pairs a candidate's fitness with its feature vector and the
// novelty computed during selection.
type ScoredCandidate struct {
	Fitness  float64
	Novelty  float64
	Features schemas.FeatureVector
	Index    int // position in the input slice
}

// blend is the weighted selection order.
func (a *Archive) blend(c ScoredCandidate) float64 {
	return a.opts.FitnessWeight*c.Fitness + a.opts.NoveltyWeight*c.Novelty
}

// ParetoSelect scores each candidate's novelty, retains the non-dominated set
// over (fitness, novelty), and orders it by the weighted blend. A degenerate
// input with an empty front falls back to blend-ordering all candidates.
func (a *Archive) ParetoSelect(candidates []ScoredCandidate) []ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	a.mu.RLock()
	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		c.Novelty = a.noveltyLocked(c.Features, -1)
		c.Index = i
		scored[i] = c
	}
	a.mu.RUnlock()

	var front []ScoredCandidate
	for i, c := range scored {
		dominated := false
		for j, other := range scored {
			if i == j {
				continue
			}
			if other.Fitness >= c.Fitness && other.Novelty >= c.Novelty &&
				(other.Fitness > c.Fitness || other.Novelty > c.Novelty) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, c)
		}
	}

	if len(front) == 0 {
		front = scored
	}
	sort.SliceStable(front, func(i, j int) bool {
		return a.blend(front[i]) > a.blend(front[j])
	})
	return front
}

// Save persists the archive as a bounded JSON structure for restart
// continuity. The write goes through a temp file and rename.
func (a *Archive) Save(path string) error {
	a.mu.RLock()
	data, err := json.MarshalIndent(a.records, "", "  ")
	a.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal novelty archive: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write novelty archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace novelty archive: %w", err)
	}
	return nil
}

// Load restores records from disk. A missing or corrupt file is tolerated:
// the archive simply starts empty.
func (a *Archive) Load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("Failed to read novelty archive; starting empty.", zap.Error(err))
		}
		return
	}

	var records []schemas.NoveltyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		a.logger.Warn("Novelty archive is corrupt; starting empty.", zap.Error(err))
		return
	}
	if len(records) > a.opts.Capacity {
		records = records[len(records)-a.opts.Capacity:]
	}

	a.mu.Lock()
	a.records = records
	a.mu.Unlock()
	a.logger.Info("Novelty archive restored.", zap.Int("records", len(records)))
}

// cosineDistance is 1 - cosine similarity. The distance between two zero
// vectors is defined as maximal (1.0) to avoid division by zero.
func cosineDistance(x, y schemas.FeatureVector) float64 {
	var dot, nx, ny float64
	for i := 0; i < schemas.FeatureVectorDim; i++ {
		dot += x[i] * y[i]
		nx += x[i] * x[i]
		ny += y[i] * y[i]
	}
	if nx == 0 || ny == 0 {
		return 1.0
	}
	sim := dot / (math.Sqrt(nx) * math.Sqrt(ny))
	return clamp01(1.0 - sim)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
