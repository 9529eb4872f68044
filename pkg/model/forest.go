package model

import (
	"encoding/json"
	"math"
	"math/rand"

	"github.com/prognos/prognos/pkg/stats"
	"github.com/prognos/prognos/pkg/telemetry"
)

// ForestConfig tunes the bagged regression-tree ensemble.
type ForestConfig struct {
	Trees    int   `json:"trees"`
	MaxDepth int   `json:"max_depth"`
	MinLeaf  int   `json:"min_leaf"`
	Seed     int64 `json:"seed"`
}

// DefaultForestConfig mirrors a modest random-forest regressor:
// bootstrap sampling per tree plus a random feature subset per split.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 50, MaxDepth: 12, MinLeaf: 3, Seed: 42}
}

// ForestTrainer trains Forest artifacts.
type ForestTrainer struct {
	cfg ForestConfig
}

// NewForestTrainer creates a trainer with the given configuration.
// Zero-valued fields fall back to defaults.
func NewForestTrainer(cfg ForestConfig) *ForestTrainer {
	def := DefaultForestConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = def.MinLeaf
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &ForestTrainer{cfg: cfg}
}

// Forest is a bagged ensemble of regression trees. Prediction is the
// mean of the per-tree estimates and is not clamped at zero.
type Forest struct {
	Config ForestConfig `json:"config"`
	Trees  []*treeNode  `json:"trees"`
}

type treeNode struct {
	// Leaf nodes carry only Value.
	Leaf  bool    `json:"leaf"`
	Value float64 `json:"value,omitempty"`

	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

// Train fits the ensemble. Deterministic for a fixed config and input.
func (t *ForestTrainer) Train(vectors []telemetry.FeatureVector, labels []float64) (Artifact, error) {
	if err := validateTrainingSet(vectors, labels); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	// sqrt(24) features considered per split.
	mtry := int(math.Ceil(math.Sqrt(float64(telemetry.NumFeatures))))

	forest := &Forest{Config: t.cfg, Trees: make([]*treeNode, 0, t.cfg.Trees)}
	for i := 0; i < t.cfg.Trees; i++ {
		// Bootstrap sample with replacement.
		sample := make([]int, len(vectors))
		for j := range sample {
			sample[j] = rng.Intn(len(vectors))
		}
		forest.Trees = append(forest.Trees, t.grow(vectors, labels, sample, mtry, 0, rng))
	}
	return forest, nil
}

// grow builds one subtree over the sampled row indices.
func (t *ForestTrainer) grow(vectors []telemetry.FeatureVector, labels []float64, rows []int, mtry, depth int, rng *rand.Rand) *treeNode {
	if depth >= t.cfg.MaxDepth || len(rows) <= t.cfg.MinLeaf*2 || constantLabels(labels, rows) {
		return &treeNode{Leaf: true, Value: meanLabel(labels, rows)}
	}

	feature, threshold, ok := t.bestSplit(vectors, labels, rows, mtry, rng)
	if !ok {
		return &treeNode{Leaf: true, Value: meanLabel(labels, rows)}
	}

	var left, right []int
	for _, r := range rows {
		if vectors[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < t.cfg.MinLeaf || len(right) < t.cfg.MinLeaf {
		return &treeNode{Leaf: true, Value: meanLabel(labels, rows)}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      t.grow(vectors, labels, left, mtry, depth+1, rng),
		Right:     t.grow(vectors, labels, right, mtry, depth+1, rng),
	}
}

// bestSplit scans a random feature subset for the threshold with the
// largest weighted variance reduction. Split scoring runs on the same
// sum/sum-of-squares accumulator the aggregation jobs use.
func (t *ForestTrainer) bestSplit(vectors []telemetry.FeatureVector, labels []float64, rows []int, mtry int, rng *rand.Rand) (feature int, threshold float64, ok bool) {
	var parent stats.Aggregate
	for _, r := range rows {
		parent.Add(labels[r])
	}
	parentSummary, _ := parent.Finalize()
	bestScore := parentSummary.Variance * float64(len(rows))
	if bestScore == 0 {
		return 0, 0, false
	}

	for _, f := range rng.Perm(telemetry.NumFeatures)[:mtry] {
		// Candidate thresholds: a handful of quantile-ish cut points
		// drawn from the rows themselves.
		for trial := 0; trial < 8; trial++ {
			cut := vectors[rows[rng.Intn(len(rows))]][f]

			var left, right stats.Aggregate
			for _, r := range rows {
				if vectors[r][f] <= cut {
					left.Add(labels[r])
				} else {
					right.Add(labels[r])
				}
			}
			if left.Count == 0 || right.Count == 0 {
				continue
			}
			ls, _ := left.Finalize()
			rs, _ := right.Finalize()
			score := ls.Variance*float64(left.Count) + rs.Variance*float64(right.Count)
			if score < bestScore {
				bestScore = score
				feature = f
				threshold = cut
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// Predict returns the mean per-tree estimate for every vector.
func (f *Forest) Predict(vectors []telemetry.FeatureVector) []float64 {
	out := make([]float64, len(vectors))
	for i, v := range vectors {
		var sum float64
		for _, tree := range f.Trees {
			sum += tree.predict(v)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out
}

func (n *treeNode) predict(v telemetry.FeatureVector) float64 {
	for !n.Leaf {
		if v[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Marshal serializes the forest for the registry.
func (f *Forest) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// UnmarshalForest decodes a registry artifact back into a Forest.
func UnmarshalForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func meanLabel(labels []float64, rows []int) float64 {
	var sum float64
	for _, r := range rows {
		sum += labels[r]
	}
	return sum / float64(len(rows))
}

func constantLabels(labels []float64, rows []int) bool {
	for _, r := range rows[1:] {
		if labels[r] != labels[rows[0]] {
			return false
		}
	}
	return true
}
