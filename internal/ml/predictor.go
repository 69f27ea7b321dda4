package ml

import (
	"math"
	"sort"
	"sync"
	"time"
)

// neighborCount is the fixed kNN neighborhood size.
const neighborCount = 3

// minutesPerComplexityLevel maps a record's duration onto the 1-5
// complexity scale: roughly one level per 15 minutes of work.
const minutesPerComplexityLevel = 15.0

// Prediction is the raw model output for a (machine, complexity) request.
type Prediction struct {
	RecommendedWorker string  `json:"recommended_worker"`
	EstimatedTime     float64 `json:"estimated_time"`
	AvgQuality        float64 `json:"avg_quality"`
	Confidence        float64 `json:"confidence"`
	JobCount          int     `json:"job_count"`
}

// ModelStatus describes the currently installed model snapshot.
type ModelStatus struct {
	Trained     bool      `json:"trained"`
	Records     int       `json:"records"`
	Workers     []string  `json:"workers"`
	Machines    []int     `json:"machines"`
	LastTrained time.Time `json:"last_trained,omitempty"`
}

// WorkerStats summarizes one worker's history in the current snapshot.
type WorkerStats struct {
	Worker     string  `json:"worker"`
	Jobs       int     `json:"jobs"`
	AvgTime    float64 `json:"avg_time"`
	AvgQuality float64 `json:"avg_quality"`
	Machines   []int   `json:"machines"`
}

// TrainingSummary reports the outcome of a retrain.
type TrainingSummary struct {
	Records   int       `json:"records"`
	Workers   int       `json:"workers"`
	TrainedAt time.Time `json:"trained_at"`
}

// scoredRecord is a training record with its derived complexity level.
type scoredRecord struct {
	TrainingRecord
	complexity int
}

// modelSnapshot is an immutable index over the records present at
// retrain time. Predictions operate on one snapshot for their whole
// lifetime; a concurrent retrain installs a new one without touching it.
type modelSnapshot struct {
	byMachine map[int][]scoredRecord
	jobCounts map[int]map[string]int
	workers   []string
	size      int
	trainedAt time.Time
}

// Predictor recommends workers using k-nearest-neighbor lookup over the
// historical records for a machine, with complexity as the distance axis.
type Predictor struct {
	store *TrainingStore

	mu    sync.RWMutex
	model *modelSnapshot
}

// NewPredictor creates a predictor backed by the given store. The
// predictor serves no predictions until the first Retrain.
func NewPredictor(store *TrainingStore) *Predictor {
	return &Predictor{store: store}
}

// Retrain builds a fresh snapshot from the store and installs it in a
// single swap. In-flight predictions keep reading the prior snapshot.
func (p *Predictor) Retrain() TrainingSummary {
	records := p.store.Records()

	snapshot := &modelSnapshot{
		byMachine: make(map[int][]scoredRecord),
		jobCounts: make(map[int]map[string]int),
		size:      len(records),
		trainedAt: time.Now(),
	}

	seen := make(map[string]bool)
	for _, r := range records {
		sr := scoredRecord{TrainingRecord: r, complexity: deriveComplexity(r.TimeMinutes)}
		snapshot.byMachine[r.MachineID] = append(snapshot.byMachine[r.MachineID], sr)

		if snapshot.jobCounts[r.MachineID] == nil {
			snapshot.jobCounts[r.MachineID] = make(map[string]int)
		}
		snapshot.jobCounts[r.MachineID][r.Worker]++
		seen[r.Worker] = true
	}
	for w := range seen {
		snapshot.workers = append(snapshot.workers, w)
	}
	sort.Strings(snapshot.workers)

	p.mu.Lock()
	p.model = snapshot
	p.mu.Unlock()

	return TrainingSummary{
		Records:   snapshot.size,
		Workers:   len(snapshot.workers),
		TrainedAt: snapshot.trainedAt,
	}
}

// snapshot returns the installed model, or nil before the first retrain.
func (p *Predictor) snapshot() *modelSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// Trained reports whether a non-empty snapshot is installed.
func (p *Predictor) Trained() bool {
	m := p.snapshot()
	return m != nil && m.size > 0
}

// Predict recommends a worker for a job of the given complexity on the
// given machine. Returns InvalidMachineError for out-of-range machines,
// ErrModelNotTrained before the first training pass, and
// ErrNoMachineData when the machine has no history.
func (p *Predictor) Predict(machineID, complexity int) (*Prediction, error) {
	if machineID < MinMachineID || machineID > MaxMachineID {
		return nil, &InvalidMachineError{MachineID: machineID}
	}
	if complexity < MinComplexity {
		complexity = MinComplexity
	}
	if complexity > MaxComplexity {
		complexity = MaxComplexity
	}

	m := p.snapshot()
	if m == nil || m.size == 0 {
		return nil, ErrModelNotTrained
	}
	return m.predict(machineID, complexity)
}

// Status describes the installed snapshot for reporting surfaces.
func (p *Predictor) Status() ModelStatus {
	m := p.snapshot()
	if m == nil {
		return ModelStatus{Workers: []string{}, Machines: []int{}}
	}

	machines := make([]int, 0, len(m.byMachine))
	for id := range m.byMachine {
		machines = append(machines, id)
	}
	sort.Ints(machines)

	return ModelStatus{
		Trained:     m.size > 0,
		Records:     m.size,
		Workers:     append([]string{}, m.workers...),
		Machines:    machines,
		LastTrained: m.trainedAt,
	}
}

// WorkerStats summarizes one worker's history in the current snapshot.
// Returns UnknownWorkerError when the snapshot has no jobs for them.
func (p *Predictor) WorkerStats(worker string) (*WorkerStats, error) {
	m := p.snapshot()
	if m == nil || m.size == 0 {
		return nil, ErrModelNotTrained
	}

	stats := &WorkerStats{Worker: worker}
	var totalTime, totalQuality float64
	machineSet := make(map[int]bool)
	for machineID, pool := range m.byMachine {
		for _, r := range pool {
			if r.Worker != worker {
				continue
			}
			stats.Jobs++
			totalTime += r.TimeMinutes
			totalQuality += r.Quality
			machineSet[machineID] = true
		}
	}
	if stats.Jobs == 0 {
		return nil, &UnknownWorkerError{Worker: worker}
	}

	stats.AvgTime = totalTime / float64(stats.Jobs)
	stats.AvgQuality = totalQuality / float64(stats.Jobs)
	for id := range machineSet {
		stats.Machines = append(stats.Machines, id)
	}
	sort.Ints(stats.Machines)
	return stats, nil
}

// ─── Snapshot internals ───────────────────────────────────────────────────────

// predict runs the kNN lookup against this snapshot.
func (m *modelSnapshot) predict(machineID, complexity int) (*Prediction, error) {
	pool := m.byMachine[machineID]
	if len(pool) == 0 {
		return nil, ErrNoMachineData
	}

	// Rank the machine's records by complexity distance, most recent
	// first on ties, and keep the nearest k.
	ranked := make([]scoredRecord, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		di := absInt(ranked[i].complexity - complexity)
		dj := absInt(ranked[j].complexity - complexity)
		if di != dj {
			return di < dj
		}
		return ranked[i].RecordedAt.After(ranked[j].RecordedAt)
	})

	k := neighborCount
	if k > len(ranked) {
		k = len(ranked)
	}
	neighbors := ranked[:k]

	var totalTime, totalQuality float64
	for _, n := range neighbors {
		totalTime += n.TimeMinutes
		totalQuality += n.Quality
	}
	estimatedTime := totalTime / float64(k)
	avgQuality := totalQuality / float64(k)

	worker := selectWorker(neighbors)

	return &Prediction{
		RecommendedWorker: worker,
		EstimatedTime:     estimatedTime,
		AvgQuality:        avgQuality,
		Confidence:        neighborConfidence(neighbors),
		JobCount:          m.jobCounts[machineID][worker],
	}, nil
}

// selectWorker picks the neighbor worker with the best combined
// time-ascending and quality-descending rank, ties going to the
// nearest neighbor.
func selectWorker(neighbors []scoredRecord) string {
	timeRank := rankBy(neighbors, func(a, b scoredRecord) bool {
		return a.TimeMinutes < b.TimeMinutes
	})
	qualityRank := rankBy(neighbors, func(a, b scoredRecord) bool {
		return a.Quality > b.Quality
	})

	best := 0
	bestScore := timeRank[0] + qualityRank[0]
	for i := 1; i < len(neighbors); i++ {
		if score := timeRank[i] + qualityRank[i]; score < bestScore {
			best = i
			bestScore = score
		}
	}
	return neighbors[best].Worker
}

// rankBy assigns 1-based ranks to neighbors under the given ordering,
// preserving neighbor order on ties.
func rankBy(neighbors []scoredRecord, less func(a, b scoredRecord) bool) []int {
	order := make([]int, len(neighbors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return less(neighbors[order[i]], neighbors[order[j]])
	})

	ranks := make([]int, len(neighbors))
	for rank, idx := range order {
		ranks[idx] = rank + 1
	}
	return ranks
}

// neighborConfidence scores how much the neighborhood agrees: full
// agreement on one worker with tight time/quality clustering approaches
// 1.0, while scattered neighbors pull the score toward the floor. The
// score is scaled down when fewer than k records exist.
func neighborConfidence(neighbors []scoredRecord) float64 {
	if len(neighbors) == 0 {
		return 0
	}

	counts := make(map[string]int)
	modal := 0
	for _, n := range neighbors {
		counts[n.Worker]++
		if counts[n.Worker] > modal {
			modal = counts[n.Worker]
		}
	}
	agreement := float64(modal) / float64(len(neighbors))

	times := make([]float64, len(neighbors))
	qualities := make([]float64, len(neighbors))
	for i, n := range neighbors {
		times[i] = n.TimeMinutes
		qualities[i] = n.Quality
	}
	spread := variation(times) + variation(qualities)
	if spread > 1 {
		spread = 1
	}

	confidence := 0.35 + 0.45*agreement + 0.2*(1-spread)

	// Scarce data caps confidence proportionally.
	confidence *= float64(len(neighbors)) / float64(neighborCount)

	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0.05 {
		confidence = 0.05
	}
	return confidence
}

// variation is the coefficient of variation (stddev over mean), 0 for
// degenerate inputs.
func variation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq/float64(len(values))) / mean
}

// deriveComplexity maps a job duration onto the 1-5 complexity scale.
func deriveComplexity(timeMinutes float64) int {
	level := int(math.Round(timeMinutes / minutesPerComplexityLevel))
	if level < MinComplexity {
		return MinComplexity
	}
	if level > MaxComplexity {
		return MaxComplexity
	}
	return level
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
