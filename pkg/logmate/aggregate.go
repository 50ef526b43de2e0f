package logmate

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
)

// Caps for the ranked lists in a Result.
const (
	TopPathsLimit      = 3
	TopIPsLimit        = 5
	TopUserAgentsLimit = 3
)

// Ranked is one entry of a top-N list. It encodes as a [key, count] pair.
type Ranked struct {
	Key   string
	Count int
}

func (r Ranked) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Key, r.Count})
}

func (r *Ranked) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("ranked entry: want [key, count], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Key); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &r.Count)
}

// Result is the final statistics for one log file.
type Result struct {
	LineCount     int            `json:"lineCount"`
	ParsedLines   int            `json:"parsedLines"`
	SkippedLines  int            `json:"skippedLines"`
	MethodsCount  map[string]int `json:"methodsCount"`
	StatusCount   map[string]int `json:"statusCount"`
	TotalBytes    int64          `json:"totalBytes"`
	TopPaths      []Ranked       `json:"topPaths"`
	TopIPs        []Ranked       `json:"topIPs"`
	TopUserAgents []Ranked       `json:"topUserAgents"`
}

// Progress is a point-in-time view of how far a job has come.
type Progress struct {
	Processed int `json:"processedCount"`
	Total     int `json:"totalLines"`
}

// counter counts keys and remembers the order each key was first seen, so
// ties rank by first appearance.
type counter struct {
	index  map[string]int
	keys   []string
	counts []int
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(key string) {
	i, ok := c.index[key]
	if !ok {
		i = len(c.keys)
		c.index[key] = i
		c.keys = append(c.keys, key)
		c.counts = append(c.counts, 0)
	}
	c.counts[i]++
}

func (c *counter) asMap() map[string]int {
	m := make(map[string]int, len(c.keys))
	for i, k := range c.keys {
		m[k] = c.counts[i]
	}
	return m
}

func (c *counter) top(n int) []Ranked {
	ranked := make([]Ranked, len(c.keys))
	for i, k := range c.keys {
		ranked[i] = Ranked{Key: k, Count: c.counts[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Aggregator folds records into running statistics. It belongs to a single
// job attempt and is not safe for concurrent use.
type Aggregator struct {
	methods    *counter
	statuses   *counter
	paths      *counter
	ips        *counter
	userAgents *counter

	totalBytes int64
	parsed     int
	skipped    int

	processed  int
	totalLines int
}

// NewAggregator creates an empty aggregate for a file of totalLines lines.
func NewAggregator(totalLines int) *Aggregator {
	if totalLines < 0 {
		totalLines = 0
	}
	return &Aggregator{
		methods:    newCounter(),
		statuses:   newCounter(),
		paths:      newCounter(),
		ips:        newCounter(),
		userAgents: newCounter(),
		totalLines: totalLines,
	}
}

// Fold adds one parsed record.
func (a *Aggregator) Fold(r Record) {
	a.methods.add(r.Method)
	a.statuses.add(r.StatusCode)
	a.paths.add(r.Path)
	a.ips.add(r.ClientAddress)
	a.userAgents.add(r.UserAgent)
	a.totalBytes += r.BytesSent
	a.parsed++
}

// Skip records a line that failed to parse.
func (a *Aggregator) Skip() {
	a.skipped++
}

// Advance moves the processed count to end, capped at the total line count.
func (a *Aggregator) Advance(end int) error {
	if end < a.processed {
		return fmt.Errorf("%w: %d -> %d", ErrRegression, a.processed, end)
	}
	a.processed = min(end, a.totalLines)
	return nil
}

// Snapshot reports the current progress.
func (a *Aggregator) Snapshot() Progress {
	return Progress{Processed: a.processed, Total: a.totalLines}
}

// Drained reports whether every line has been processed.
func (a *Aggregator) Drained() bool {
	return a.processed == a.totalLines
}

// Finalize computes the Result. It only reads the aggregate.
func (a *Aggregator) Finalize() Result {
	return Result{
		LineCount:     a.totalLines,
		ParsedLines:   a.parsed,
		SkippedLines:  a.skipped,
		MethodsCount:  a.methods.asMap(),
		StatusCount:   a.statuses.asMap(),
		TotalBytes:    a.totalBytes,
		TopPaths:      a.paths.top(TopPathsLimit),
		TopIPs:        a.ips.top(TopIPsLimit),
		TopUserAgents: a.userAgents.top(TopUserAgentsLimit),
	}
}

// FinalizeChecked is Finalize guarded against unprocessed lines.
func (a *Aggregator) FinalizeChecked() (Result, error) {
	if !a.Drained() {
		return Result{}, fmt.Errorf("%w: %d of %d", ErrNotDrained, a.processed, a.totalLines)
	}
	return a.Finalize(), nil
}
