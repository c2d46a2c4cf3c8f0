package smtpsink

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
)

// DefaultCapacity is the number of messages retained when no capacity is configured
const DefaultCapacity = 200

// Message is one captured email
type Message struct {
	ID           string    `json:"id"`
	EnvelopeFrom string    `json:"envelope_from"`
	Recipients   []string  `json:"recipients"`
	FromName     string    `json:"from_name"`
	FromAddress  string    `json:"from_address"`
	Subject      string    `json:"subject"`
	MessageID    string    `json:"message_id"`
	Text         string    `json:"text"`
	HTML         string    `json:"html"`
	Attachments  int       `json:"attachments"`
	ReceivedAt   time.Time `json:"received_at"`
}

// ParseMessage reads a MIME message into a Message. Envelope fields are left empty.
func ParseMessage(r io.Reader) (Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Subject:     env.GetHeader("Subject"),
		MessageID:   strings.Trim(env.GetHeader("Message-Id"), "<>"),
		Text:        env.Text,
		HTML:        env.HTML,
		Attachments: len(env.Attachments),
	}

	// A malformed From header is kept as the raw address rather than failing the message.
	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromName = from[0].Name
		msg.FromAddress = from[0].Address
	} else {
		msg.FromAddress = strings.TrimSpace(env.GetHeader("From"))
	}

	return msg, nil
}

type messageStore struct {
	mu       sync.RWMutex
	capacity int
	messages []Message
}

func newMessageStore(capacity int) *messageStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &messageStore{capacity: capacity}
}

func (s *messageStore) add(msg Message) Message {
	msg.ID = uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	if over := len(s.messages) - s.capacity; over > 0 {
		s.messages = append([]Message(nil), s.messages[over:]...)
	}
	return msg
}

func (s *messageStore) list() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *messageStore) clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}
