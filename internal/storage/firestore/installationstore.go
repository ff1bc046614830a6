// Package firestore implements the durable installation store on Google
// Cloud Firestore, one document per installation id.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/xamcat/pushrelay/pkg/push"
)

const installationsCollection = "installations"

// Store implements hub.InstallationStore and hub.InstallationSource.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// installationRecord is the internal DB representation.
type installationRecord struct {
	Platform    string            `firestore:"platform"`
	PushChannel string            `firestore:"push_channel"`
	Tags        []string          `firestore:"tags"`
	Templates   map[string]string `firestore:"templates"`
	UpdatedAt   time.Time         `firestore:"updated_at"`
}

// Upsert fully replaces the document keyed by the installation id. Set is
// idempotent at the document level, which gives us the required
// last-writer-wins upsert without a read-modify-write cycle.
func (s *Store) Upsert(ctx context.Context, installation push.DeviceInstallation) error {
	installation.Normalize()

	templates := make(map[string]string, len(installation.Templates))
	for name, tpl := range installation.Templates {
		templates[name] = tpl.Body
	}

	record := installationRecord{
		Platform:    string(installation.Platform),
		PushChannel: installation.PushChannel,
		Tags:        installation.Tags,
		Templates:   templates,
		UpdatedAt:   time.Now(),
	}

	_, err := s.docRef(installation.InstallationID).Set(ctx, record)
	if err != nil {
		return fmt.Errorf("firestore upsert failed: %w", err)
	}
	return nil
}

// Delete removes the document. Firestore deletes are idempotent: deleting a
// missing document succeeds, which matches the store contract.
func (s *Store) Delete(ctx context.Context, installationID string) error {
	_, err := s.docRef(installationID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("firestore delete failed: %w", err)
	}
	return nil
}

// ListByTags streams the collection and filters client-side. Firestore's
// array-contains-any caps at 10 values, below our 20-tag call groups, so the
// filter lives here rather than in the query.
func (s *Store) ListByTags(ctx context.Context, tags []string) ([]push.DeviceInstallation, error) {
	wanted := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		wanted[t] = struct{}{}
	}

	iter := s.client.Collection(installationsCollection).Documents(ctx)
	defer iter.Stop()

	var out []push.DeviceInstallation
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record installationRecord
		if err := doc.DataTo(&record); err != nil {
			// Corrupt rows are skipped rather than failing the whole fan-out.
			continue
		}

		inst := recordToInstallation(doc.Ref.ID, record)
		if len(wanted) == 0 || matchesAny(inst.Tags, wanted) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func recordToInstallation(id string, record installationRecord) push.DeviceInstallation {
	templates := make(map[string]push.PushTemplate, len(record.Templates))
	for name, body := range record.Templates {
		templates[name] = push.PushTemplate{Body: body}
	}
	return push.DeviceInstallation{
		InstallationID: id,
		Platform:       push.Platform(record.Platform),
		PushChannel:    record.PushChannel,
		Tags:           record.Tags,
		Templates:      templates,
	}
}

func matchesAny(tags []string, wanted map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := wanted[t]; ok {
			return true
		}
	}
	return false
}

func (s *Store) docRef(installationID string) *firestore.DocumentRef {
	return s.client.Collection(installationsCollection).Doc(installationID)
}
