package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/itiky/optimistic-sync/model"
)

// sessionSeed is the gob-serialized bootstrap form of one session.
type sessionSeed struct {
	Id       model.SessionId
	Snapshot model.Snapshot
}

// GenAndSaveSessions generates random session seeds and saves them to the
// file system.
func GenAndSaveSessions(filePath string, sessionCount, messagesPerSession int) error {
	if sessionCount <= 0 {
		return fmt.Errorf("%s: must be GT 0", "sessionCount")
	}
	if messagesPerSession < 0 {
		return fmt.Errorf("%s: must be GTE 0", "messagesPerSession")
	}

	log.Printf("Creating session seeds...")
	seeds := newSessionMockSeeds(sessionCount, messagesPerSession)

	log.Printf("GOB marshal...")
	seedsRaw := new(bytes.Buffer)
	if err := gob.NewEncoder(seedsRaw).Encode(seeds); err != nil {
		return fmt.Errorf("GOB marshal: %w", err)
	}

	log.Printf("Saving file...")
	if err := os.WriteFile(filePath, seedsRaw.Bytes(), 0644); err != nil {
		return fmt.Errorf("write to file (%s): %w", filePath, err)
	}

	log.Printf("Done")

	return nil
}

// NewStoreFromFile builds a Store with v0 sessions read from the file.
func NewStoreFromFile(filePath string) (*Store, error) {
	log.Printf("Reading file...")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file (%s): %w", filePath, err)
	}

	log.Printf("GOB unmarshal...")
	seeds := make([]sessionSeed, 0)
	buf := bytes.NewBuffer(data)
	if err := gob.NewDecoder(buf).Decode(&seeds); err != nil {
		return nil, fmt.Errorf("GOB unmarshal: %w", err)
	}

	log.Printf("Store creation...")
	store := NewStore()
	for _, seed := range seeds {
		store.sessions[seed.Id] = newSessionFromSnapshot(seed.Id, seed.Snapshot)
	}

	log.Printf("Store created: %d sessions", store.Len())

	return store, nil
}

// newSessionMockSeeds builds mock session seeds.
func newSessionMockSeeds(sessionCount, messagesPerSession int) []sessionSeed {
	seeds := make([]sessionSeed, 0, sessionCount)
	for i := 0; i < sessionCount; i++ {
		seeds = append(seeds, newSessionMockSeed(messagesPerSession))
	}

	return seeds
}

// newSessionMockSeed builds one mock session seed.
func newSessionMockSeed(messageCount int) sessionSeed {
	snapshot := model.Snapshot{Status: model.StatusIdle}
	for i := 0; i < messageCount; i++ {
		snapshot.Messages = append(snapshot.Messages, model.Message{
			Id:      "msg-" + ulid.Make().String(),
			Content: fmt.Sprintf("mock message %d (%d)", i, rand.Int31()),
		})
	}

	return sessionSeed{
		Id:       model.SessionId(uuid.New().String()),
		Snapshot: snapshot,
	}
}
