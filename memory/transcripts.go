package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tailored-agentic-units/incidentdesk/session"
)

const (
	sessionPrefix = "sessions/"
	snapshotExt   = ".json.zst"

	snapshotVersion = 1
)

type snapshot struct {
	Version   int            `json:"version"`
	SessionID string         `json:"session_id"`
	SavedAt   time.Time      `json:"saved_at"`
	Turns     []session.Turn `json:"turns"`
}

// Transcripts stores session snapshots in a Store.
type Transcripts struct {
	store   Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	now     func() time.Time
}

// NewTranscripts creates a Transcripts over store.
func NewTranscripts(store Store) (*Transcripts, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &Transcripts{
		store:   store,
		encoder: encoder,
		decoder: decoder,
		now:     time.Now,
	}, nil
}

// Key returns the store key holding the snapshot for id.
func Key(id string) string {
	return sessionPrefix + id + snapshotExt
}

// Load implements session.Persister.
func (t *Transcripts) Load(ctx context.Context, id string) ([]session.Turn, bool, error) {
	data, err := t.store.Load(ctx, Key(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	raw, err := t.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrCorrupt, id, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrCorrupt, id, err)
	}
	if snap.Version != snapshotVersion {
		return nil, false, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, id, snap.Version)
	}
	return snap.Turns, true, nil
}

// Save implements session.Persister.
func (t *Transcripts) Save(ctx context.Context, id string, turns []session.Turn) error {
	raw, err := json.Marshal(snapshot{
		Version:   snapshotVersion,
		SessionID: id,
		SavedAt:   t.now().UTC(),
		Turns:     turns,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, id, err)
	}
	return t.store.Save(ctx, Key(id), t.encoder.EncodeAll(raw, nil))
}

// Delete removes the snapshot for id.
func (t *Transcripts) Delete(ctx context.Context, id string) error {
	return t.store.Delete(ctx, Key(id))
}

// Sessions lists the ids that have a snapshot, sorted.
func (t *Transcripts) Sessions(ctx context.Context) ([]string, error) {
	keys, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, key := range keys {
		if id, ok := strings.CutPrefix(key, sessionPrefix); ok {
			if id, ok = strings.CutSuffix(id, snapshotExt); ok && session.ValidID(id) {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
