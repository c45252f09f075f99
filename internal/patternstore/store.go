// Package patternstore implements the Pattern/Cache Store Adapter
// (spec.md §4.10, §6): debounced persistence of learned healings,
// fronted by a bounded LRU for hot fingerprint lookups, with Save
// serialised through a single in-flight save (spec.md §5). There is no
// periodic save: Config.AutoSaveInterval is not read by Store, and
// writes happen only on the debounce timer, Save and Close.
package patternstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaptinlin/jsonrepair"
	"golang.org/x/sync/singleflight"

	"github.com/selfheal/playback-core/internal/logging"
	"github.com/selfheal/playback-core/internal/playback/model"
)

// persistedFormat is the on-disk object shape (spec.md §6).
type persistedFormat struct {
	Data    []model.HealingRecord  `json:"data"`
	SavedAt int64                  `json:"savedAt"`
	Version string                 `json:"version"`
	Unknown map[string]interface{} `json:"-"`
}

const formatVersion = "1.0"

// Config tunes persistence cadence.
type Config struct {
	Path            string
	AutoSaveInterval time.Duration
	DebounceDelay    time.Duration
	LRUSize          int
}

func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		AutoSaveInterval: 30 * time.Second,
		DebounceDelay:    2 * time.Second,
		LRUSize:          512,
	}
}

// Store persists HealingRecords to a JSON file, with an in-memory LRU
// in front for hot-path Lookup calls.
type Store struct {
	cfg    Config
	log    *logging.Logger
	mu     sync.Mutex
	byFP   map[string][]model.HealingRecord
	hot    *lru.Cache[string, []model.HealingRecord]
	dirty  bool
	group  singleflight.Group
	timer  *time.Timer
	closed bool
}

func New(cfg Config, log *logging.Logger) (*Store, error) {
	hot, err := lru.New[string, []model.HealingRecord](cfg.LRUSize)
	if err != nil {
		return nil, fmt.Errorf("patternstore: build LRU: %w", err)
	}
	if log == nil {
		log = logging.New(logging.Config{ComponentName: "PATTERNSTORE"})
	}
	s := &Store{cfg: cfg, log: log, byFP: map[string][]model.HealingRecord{}, hot: hot}
	return s, nil
}

// Load reads the persisted file, tolerating malformed JSON by
// attempting jsonrepair before giving up, per SPEC_FULL's forward
// compatibility requirement.
func (s *Store) Load(ctx context.Context) ([]model.HealingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("patternstore: read %s: %w", s.cfg.Path, err)
	}

	var pf persistedFormat
	if err := json.Unmarshal(data, &pf); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return nil, fmt.Errorf("patternstore: parse %s: %w", s.cfg.Path, err)
		}
		if err := json.Unmarshal([]byte(repaired), &pf); err != nil {
			return nil, fmt.Errorf("patternstore: parse repaired %s: %w", s.cfg.Path, err)
		}
		s.log.Warn("repaired malformed pattern store file %s", s.cfg.Path)
	}

	s.indexLocked(pf.Data)
	return pf.Data, nil
}

func (s *Store) indexLocked(records []model.HealingRecord) {
	s.byFP = make(map[string][]model.HealingRecord, len(records))
	for _, r := range records {
		s.byFP[r.OriginalFingerprint] = append(s.byFP[r.OriginalFingerprint], r)
	}
	s.hot.Purge()
}

// Save writes the full record set, overwriting the file.
func (s *Store) Save(ctx context.Context, records []model.HealingRecord) error {
	_, err, _ := s.group.Do("save", func() (interface{}, error) {
		return nil, s.saveNow(records)
	})
	return err
}

func (s *Store) saveNow(records []model.HealingRecord) error {
	s.mu.Lock()
	pf := persistedFormat{Data: records, SavedAt: nowUnix(), Version: formatVersion}
	s.mu.Unlock()

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("patternstore: marshal: %w", err)
	}
	tmp := s.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("patternstore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		return fmt.Errorf("patternstore: rename %s: %w", s.cfg.Path, err)
	}

	s.mu.Lock()
	s.indexLocked(records)
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// RecordSuccess appends a HealingRecord for fingerprint and schedules a
// debounced save; the debounce collapses bursts of RecordSuccess calls
// within DebounceDelay into a single write, and the debounced write
// goes through Save, whose singleflight group lets only one Save be
// in flight at a time (spec.md §5's "single in-flight save" rule).
func (s *Store) RecordSuccess(ctx context.Context, fingerprint, healedSelector, strategy string, confidence float64) error {
	record := model.HealingRecord{
		OriginalFingerprint: fingerprint,
		HealedSelector:      healedSelector,
		Strategy:            strategy,
		Confidence:          confidence,
		TimestampUnix:       nowUnix(),
		Success:             true,
	}

	s.mu.Lock()
	s.byFP[fingerprint] = append(s.byFP[fingerprint], record)
	s.hot.Remove(fingerprint)
	s.dirty = true
	all := s.flattenLocked()
	s.scheduleDebouncedSaveLocked(all)
	s.mu.Unlock()
	return nil
}

func (s *Store) flattenLocked() []model.HealingRecord {
	var out []model.HealingRecord
	for _, recs := range s.byFP {
		out = append(out, recs...)
	}
	return out
}

func (s *Store) scheduleDebouncedSaveLocked(snapshot []model.HealingRecord) {
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.DebounceDelay, func() {
		if err := s.Save(context.Background(), snapshot); err != nil {
			s.log.Error("debounced save failed: %v", err)
		}
	})
}

// Lookup returns cached records for fingerprint, consulting the hot
// LRU before falling back to the full index.
func (s *Store) Lookup(ctx context.Context, fingerprint string) ([]model.HealingRecord, error) {
	if cached, ok := s.hot.Get(fingerprint); ok {
		return cached, nil
	}
	s.mu.Lock()
	records := append([]model.HealingRecord(nil), s.byFP[fingerprint]...)
	s.mu.Unlock()
	s.hot.Add(fingerprint, records)
	return records, nil
}

// Close stops the debounce timer and flushes any dirty state.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	dirty := s.dirty
	snapshot := s.flattenLocked()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	if dirty {
		return s.saveNow(snapshot)
	}
	return nil
}

var nowUnix = func() int64 { return time.Now().Unix() }
