// Package observability tracks which statements and predicates the ORM
// issues, so operators can see hot queries and the columns worth indexing.
package observability

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

// QueryStats tracks statement and predicate frequency.
type QueryStats struct {
	mu            sync.RWMutex
	predicateFreq map[string]*ColumnStats
	statements    map[uint64]*StatementStats
	window        time.Duration
}

// ColumnStats holds predicate statistics for a column.
type ColumnStats struct {
	Column    string
	Frequency int64
	LastSeen  time.Time
	Operators map[string]int // operator → count (e.g., "=" → 5, "IN" → 2)
}

// StatementStats holds execution statistics for one statement shape.
type StatementStats struct {
	Fingerprint uint64
	SQL         string
	Count       int64
	Errors      int64
	TotalTime   time.Duration
	LastSeen    time.Time
}

// NewQueryStats creates a new query statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		predicateFreq: make(map[string]*ColumnStats),
		statements:    make(map[uint64]*StatementStats),
		window:        window,
	}
}

// Fingerprint hashes a statement after collapsing whitespace. Statements
// bind their values, so equal fingerprints mean equal statement shapes.
func Fingerprint(sql string) uint64 {
	return murmur3.Sum64([]byte(normalize(sql)))
}

func normalize(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// RecordStatement records one execution of sql.
func (q *QueryStats) RecordStatement(sql string, elapsed time.Duration, failed bool) {
	fp := Fingerprint(sql)

	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.statements[fp]
	if !exists {
		stats = &StatementStats{Fingerprint: fp, SQL: normalize(sql)}
		q.statements[fp] = stats
	}

	stats.Count++
	if failed {
		stats.Errors++
	}
	stats.TotalTime += elapsed
	stats.LastSeen = time.Now()
}

// RecordPredicate records a predicate access for a column.
// column: the qualified column name (e.g., "people.age")
// operator: the comparison operator (e.g., "=", "IN", ">")
func (q *QueryStats) RecordPredicate(column, operator string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.predicateFreq[column]
	if !exists {
		stats = &ColumnStats{
			Column:    column,
			Operators: make(map[string]int),
		}
		q.predicateFreq[column] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

// GetTopPredicates returns the top N predicate columns by frequency.
// Returns a copy of the stats sorted by frequency (descending).
func (q *QueryStats) GetTopPredicates(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.predicateFreq) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(q.predicateFreq))
	for _, s := range q.predicateFreq {
		statsCopy := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Operators: make(map[string]int, len(s.Operators)),
		}
		for op, count := range s.Operators {
			statsCopy.Operators[op] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// GetTopStatements returns the top N statements by execution count.
func (q *QueryStats) GetTopStatements(n int) []StatementStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.statements) == 0 {
		return []StatementStats{}
	}

	stats := make([]StatementStats, 0, len(q.statements))
	for _, s := range q.statements {
		stats = append(stats, *s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].SQL < stats[j].SQL
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)

	for col, stats := range q.predicateFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.predicateFreq, col)
		}
	}

	for fp, stats := range q.statements {
		if stats.LastSeen.Before(threshold) {
			delete(q.statements, fp)
		}
	}
}
