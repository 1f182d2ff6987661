package connection

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/wsctl/internal/transport"
)

// sentPrefix tags outbound entries in a message log.
const sentPrefix = ">> "

// Record is the live state of one connection. Identity fields are fixed at
// creation; everything below mu is written only through Registry.Mutate.
type Record struct {
	id        uint64
	session   uuid.UUID
	handle    transport.Handle
	uri       string
	createdAt time.Time

	mu           sync.Mutex
	status       Status
	remoteServer string
	errorReason  string
	messages     []string
	updatedAt    time.Time
}

func newRecord(id uint64, uri string, h transport.Handle, now time.Time) *Record {
	return &Record{
		id:        id,
		session:   uuid.New(),
		handle:    h,
		uri:       uri,
		createdAt: now,
		status:    Connecting,
		updatedAt: now,
	}
}

// snapshot copies the record. Caller must hold r.mu.
func (r *Record) snapshot() Snapshot {
	messages := make([]string, len(r.messages))
	copy(messages, r.messages)

	return Snapshot{
		ID:           r.id,
		Session:      r.session,
		URI:          r.uri,
		Status:       r.status,
		RemoteServer: r.remoteServer,
		ErrorReason:  r.errorReason,
		Messages:     messages,
		CreatedAt:    r.createdAt,
		UpdatedAt:    r.updatedAt,
	}
}

// Snapshot is an immutable copy of a Record.
type Snapshot struct {
	ID           uint64    `json:"id"`
	Session      uuid.UUID `json:"session"`
	URI          string    `json:"uri"`
	Status       Status    `json:"status"`
	RemoteServer string    `json:"remote_server"`
	ErrorReason  string    `json:"error_reason"`
	Messages     []string  `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// String renders the snapshot the way the console prints it.
func (s Snapshot) String() string {
	server := s.RemoteServer
	if server == "" {
		server = "None Specified"
	}
	reason := s.ErrorReason
	if reason == "" {
		reason = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "> URI: %s\n", s.URI)
	fmt.Fprintf(&b, "> Status: %s\n", s.Status)
	fmt.Fprintf(&b, "> Remote Server: %s\n", server)
	fmt.Fprintf(&b, "> Error/close reason: %s\n", reason)
	fmt.Fprintf(&b, "> Messages Processed: (%d)\n", len(s.Messages))
	for _, msg := range s.Messages {
		b.WriteString(msg)
		b.WriteByte('\n')
	}
	return b.String()
}
