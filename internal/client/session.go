package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pliu/hush/internal/crypto"
	"github.com/pliu/hush/internal/messages"
	"github.com/pliu/hush/internal/models"
)

// FailedText stands in for a message that could not be decrypted.
const FailedText = "[Decryption failed]"

// ErrRatchetDesync means a pushed message cannot be opened incrementally.
// It is recovered by Resync.
var ErrRatchetDesync = errors.New("ratchet out of sync")

// Transport is the part of the server a Session needs.
type Transport interface {
	PostMessage(ctx context.Context, roomID string, p messages.Post) (*models.Message, error)
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// Envelope is the plaintext inside every ciphertext.
type Envelope struct {
	Sender          string `json:"sender"`
	Text            string `json:"text"`
	ClientTimestamp int64  `json:"clientTimestamp"`
}

// Decrypted is one line of the room transcript.
type Decrypted struct {
	ID          string
	SenderToken string
	Sender      string
	Text        string
	Step        uint64
	Timestamp   int64
	Failed      bool
}

// Session holds the ratchet state table for one room. All methods are safe
// for concurrent use; Send calls are serialised so a sender never issues step
// n+1 before step n is accepted.
type Session struct {
	mu        sync.Mutex
	transport Transport
	roomID    string
	secret    string
	name      string
	token     string

	chains map[string]*crypto.Chain
	names  map[string]string
	sent   map[string]Decrypted
	now    func() time.Time
}

func NewSession(t Transport, roomID, secret, displayName string) (*Session, error) {
	token, err := crypto.SenderToken(secret, displayName)
	if err != nil {
		return nil, err
	}
	return &Session{
		transport: t,
		roomID:    roomID,
		secret:    secret,
		name:      displayName,
		token:     token,
		chains:    make(map[string]*crypto.Chain),
		names:     map[string]string{token: displayName},
		sent:      make(map[string]Decrypted),
		now:       time.Now,
	}, nil
}

func (s *Session) SenderToken() string { return s.token }

// Names returns the display names learned so far, keyed by sender token.
func (s *Session) Names() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out
}

// ExpectedStep is the next step the session will accept from senderToken.
func (s *Session) ExpectedStep(senderToken string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chains[senderToken]
	if !ok {
		return 0, false
	}
	return c.Step(), true
}

func (s *Session) chainFor(token string) (*crypto.Chain, error) {
	if c, ok := s.chains[token]; ok {
		return c, nil
	}
	root, err := crypto.SenderRootKey(s.secret, token)
	if err != nil {
		return nil, err
	}
	c, err := crypto.NewChain(root)
	if err != nil {
		return nil, err
	}
	s.chains[token] = c
	return c, nil
}

// Send encrypts text at the current step, posts it and moves the caller's
// chain only once the server has accepted the message.
func (s *Session) Send(ctx context.Context, text string) (Decrypted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, err := s.chainFor(s.token)
	if err != nil {
		return Decrypted{}, err
	}
	pt, err := json.Marshal(Envelope{Sender: s.name, Text: text, ClientTimestamp: s.now().UnixMilli()})
	if err != nil {
		return Decrypted{}, err
	}
	sealed, err := chain.Seal(pt)
	if err != nil {
		return Decrypted{}, fmt.Errorf("seal: %w", err)
	}

	msg, err := s.transport.PostMessage(ctx, s.roomID, messages.Post{
		SenderToken: s.token,
		Ciphertext:  crypto.EncodeB64(sealed.Ciphertext),
		IV:          crypto.EncodeB64(sealed.IV),
		Step:        sealed.Step,
	})
	if err != nil {
		return Decrypted{}, err
	}
	if err := chain.Advance(sealed.IV); err != nil {
		return Decrypted{}, err
	}

	d := Decrypted{
		ID:          msg.ID,
		SenderToken: s.token,
		Sender:      s.name,
		Text:        text,
		Step:        sealed.Step,
		Timestamp:   msg.Timestamp,
	}
	s.sent[msg.ID] = d
	return d, nil
}

// HandleMessage is the cheap path for a pushed message: it opens the message
// only if its step is exactly the one expected for that sender. Anything else,
// including a sender never seen before, returns ErrRatchetDesync.
func (s *Session) HandleMessage(msg models.Message) (Decrypted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.sent[msg.ID]; ok {
		return d, nil
	}
	chain, ok := s.chains[msg.SenderToken]
	if !ok {
		return Decrypted{}, fmt.Errorf("%w: unknown sender", ErrRatchetDesync)
	}
	if msg.Step != chain.Step() {
		return Decrypted{}, fmt.Errorf("%w: step %d, expected %d", ErrRatchetDesync, msg.Step, chain.Step())
	}
	return s.open(chain, msg), nil
}

// Receive handles a pushed message and falls back to a full resync when the
// cheap path is not possible. It returns the lines that are new to the caller:
// one on the cheap path, the whole transcript after a resync.
func (s *Session) Receive(ctx context.Context, msg models.Message) ([]Decrypted, error) {
	d, err := s.HandleMessage(msg)
	if err == nil {
		return []Decrypted{d}, nil
	}
	if !errors.Is(err, ErrRatchetDesync) {
		return nil, err
	}
	return s.Resync(ctx)
}

// Resync discards the state table and rebuilds it from the room's log. Every
// sender's messages are replayed from step 0 in step order; a message that
// cannot be opened becomes a placeholder and replay continues.
func (s *Session) Resync(ctx context.Context) ([]Decrypted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.transport.ListMessages(ctx, s.roomID)
	if err != nil {
		return nil, err
	}

	bySender := make(map[string][]models.Message)
	for _, m := range log {
		bySender[m.SenderToken] = append(bySender[m.SenderToken], m)
	}

	s.chains = make(map[string]*crypto.Chain)
	opened := make(map[string]Decrypted, len(log))
	for token, msgs := range bySender {
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Step < msgs[j].Step })
		chain, err := s.chainFor(token)
		if err != nil {
			return nil, err
		}
		var (
			prevKey  []byte
			prevStep uint64
		)
		for _, m := range msgs {
			// A repeated step is a resend whose first copy was stored but
			// never acknowledged. The sender moved on from the copy it saw
			// accepted, so a copy that opens under the previous key replaces
			// the chain.
			if prevKey != nil && m.Step == prevStep && chain.Step() == prevStep+1 {
				retry, err := crypto.NewChain(prevKey)
				if err != nil {
					return nil, err
				}
				retry.JumpTo(prevStep)
				d := s.open(retry, m)
				if !d.Failed {
					chain = retry
					s.chains[token] = retry
				}
				opened[m.ID] = d
				continue
			}

			// A gap in stored steps: carry on from the stored number.
			if m.Step != chain.Step() {
				chain.JumpTo(m.Step)
			}
			prevKey, prevStep = chain.Key(), m.Step
			opened[m.ID] = s.open(chain, m)
		}
	}

	out := make([]Decrypted, 0, len(log))
	for _, m := range log {
		out = append(out, opened[m.ID])
	}
	return out, nil
}

// open decrypts m at the chain's current step and moves the chain on. It never
// fails: undecryptable messages come back as placeholders.
func (s *Session) open(chain *crypto.Chain, m models.Message) Decrypted {
	d := Decrypted{
		ID:          m.ID,
		SenderToken: m.SenderToken,
		Sender:      s.names[m.SenderToken],
		Step:        m.Step,
		Timestamp:   m.Timestamp,
		Text:        FailedText,
		Failed:      true,
	}

	ct, ctErr := crypto.DecodeB64(m.Ciphertext)
	iv, ivErr := crypto.DecodeB64(m.IV)
	if ctErr != nil || ivErr != nil {
		chain.JumpTo(m.Step + 1)
		return d
	}
	pt, err := chain.Open(ct, iv)
	if err != nil {
		if !errors.Is(err, crypto.ErrAuthenticationFailed) {
			// Bad nonce length: the chain could not move.
			chain.JumpTo(m.Step + 1)
		}
		return d
	}

	var env Envelope
	if err := json.Unmarshal(pt, &env); err != nil {
		return d
	}
	s.names[m.SenderToken] = env.Sender
	d.Sender = env.Sender
	d.Text = env.Text
	d.Failed = false
	return d
}
