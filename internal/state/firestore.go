package state

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// metaDocID holds the run counter inside the ledger collection. Recording
// document IDs are base64url-encoded UUIDs, so the plain "_meta" name can
// never collide with a ledger entry.
const metaDocID = "_meta"

type metaRecord struct {
	RunCount int `firestore:"runCount"`
}

type ledgerRecord struct {
	UUID        string    `firestore:"uuid"`
	ProcessedAt time.Time `firestore:"processedAt"`
}

// FirestoreStore persists run state in a Firestore collection, one document
// per processed recording. Intended for the Cloud Functions deployment where
// no durable local disk exists.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore wraps an existing Firestore client. The collection holds
// ledger documents plus one _meta document for the run counter.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

// docID encodes a recording UUID into a Firestore-safe document ID. Zoom
// UUIDs may contain "/" which Firestore forbids in document names.
func docID(uuid string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(uuid))
}

func (s *FirestoreStore) LoadRunCount(ctx context.Context) (int, error) {
	snap, err := s.client.Collection(s.collection).Doc(metaDocID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read run count: %w", err)
	}
	var rec metaRecord
	if err := snap.DataTo(&rec); err != nil {
		return 0, fmt.Errorf("%w: run count document: %v", ErrStateCorrupt, err)
	}
	return rec.RunCount, nil
}

func (s *FirestoreStore) SaveRunCount(ctx context.Context, count int) error {
	_, err := s.client.Collection(s.collection).Doc(metaDocID).Set(ctx, metaRecord{RunCount: count})
	if err != nil {
		return fmt.Errorf("failed to save run count: %w", err)
	}
	return nil
}

func (s *FirestoreStore) LoadLedger(ctx context.Context) (Ledger, error) {
	ledger := Ledger{}
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger collection: %w", err)
		}
		if snap.Ref.ID == metaDocID {
			continue
		}
		var rec ledgerRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("%w: ledger document %s: %v", ErrStateCorrupt, snap.Ref.ID, err)
		}
		ledger[rec.UUID] = LedgerEntry{ProcessedAt: rec.ProcessedAt}
	}
	return ledger, nil
}

// SaveLedger writes every entry. The ledger is append-only in practice, so
// re-setting unchanged documents is harmless and keeps the whole-replace
// contract of the Store interface.
func (s *FirestoreStore) SaveLedger(ctx context.Context, ledger Ledger) error {
	bw := s.client.BulkWriter(ctx)
	coll := s.client.Collection(s.collection)
	for uuid, entry := range ledger {
		_, err := bw.Set(coll.Doc(docID(uuid)), ledgerRecord{UUID: uuid, ProcessedAt: entry.ProcessedAt})
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue ledger write for %s: %w", uuid, err)
		}
	}
	bw.End()
	return nil
}
