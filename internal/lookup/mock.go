package lookup

import (
	"context"
	"net"
	"strings"
	"time"
)

// MockResolver is a Resolver used for testing. Names are matched
// case-insensitively and without the trailing dot.
type MockResolver struct {
	TXT map[string][]string
	MX  map[string][]*net.MX

	// Fail maps "txt name" or "mx name" to the error that lookup returns.
	Fail map[string]error

	// Delay is applied to every lookup; it honours ctx cancellation.
	Delay time.Duration
}

var _ Resolver = MockResolver{}

func mockKey(kind, name string) string {
	return kind + " " + strings.ToLower(strings.TrimSuffix(name, "."))
}

func (m MockResolver) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m MockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	key := mockKey("txt", name)
	if err, ok := m.Fail[key]; ok {
		return nil, err
	}
	records := m.TXT[strings.TrimPrefix(key, "txt ")]
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

func (m MockResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	key := mockKey("mx", name)
	if err, ok := m.Fail[key]; ok {
		return nil, err
	}
	records := m.MX[strings.TrimPrefix(key, "mx ")]
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	out := make([]*net.MX, len(records))
	for i, mx := range records {
		c := *mx
		out[i] = &c
	}
	return out, nil
}
