// Package lookup fetches word definitions from a dictionaryapi.dev style
// endpoint.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Alekzandar/vibereader/internal/domain"
)

const (
	DefaultBaseURL = "https://api.dictionaryapi.dev/"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

var (
	// ErrNotFound means the service has no usable definition for the word.
	ErrNotFound = domain.ErrLookupNotFound
	// ErrTransport covers network, status and decoding failures.
	ErrTransport = domain.ErrLookupTransport
)

// Definition is the first meaning's first definition for a word.
type Definition struct {
	Word         string
	PartOfSpeech string
	Text         string
	Example      string
}

// Client performs single-attempt definition lookups. There is no retry or
// caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for baseURL. Empty values select the defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type entry struct {
	Word     string    `json:"word"`
	Meanings []meaning `json:"meanings"`
}

type meaning struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Definitions  []definition `json:"definitions"`
}

type definition struct {
	Definition string `json:"definition"`
	Example    string `json:"example"`
}

// Lookup sends one request for word.
func (c *Client) Lookup(ctx context.Context, word string) (Definition, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return Definition{}, domain.Wrap(domain.KindLookupNotFound, fmt.Errorf("empty word"))
	}

	endpoint := fmt.Sprintf("%s/api/v2/entries/en/%s", c.baseURL, url.PathEscape(word))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Definition{}, domain.Wrap(domain.KindLookupTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vibereader")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Definition{}, domain.Wrap(domain.KindLookupTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Definition{}, domain.Wrap(domain.KindLookupNotFound, fmt.Errorf("%q", word))
	}
	if resp.StatusCode != http.StatusOK {
		return Definition{}, domain.Wrap(domain.KindLookupTransport, fmt.Errorf("dictionary returned status: %s", resp.Status))
	}

	var entries []entry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&entries); err != nil {
		return Definition{}, domain.Wrap(domain.KindLookupTransport, fmt.Errorf("decode response: %w", err))
	}

	return firstDefinition(word, entries)
}

// firstDefinition picks the first meaning of the first entry.
func firstDefinition(word string, entries []entry) (Definition, error) {
	if len(entries) == 0 || len(entries[0].Meanings) == 0 {
		return Definition{}, domain.Wrap(domain.KindLookupNotFound, fmt.Errorf("%q has no meanings", word))
	}
	m := entries[0].Meanings[0]
	if len(m.Definitions) == 0 {
		return Definition{}, domain.Wrap(domain.KindLookupNotFound, fmt.Errorf("%q has no definitions", word))
	}

	d := Definition{
		Word:         entries[0].Word,
		PartOfSpeech: m.PartOfSpeech,
		Text:         m.Definitions[0].Definition,
		Example:      m.Definitions[0].Example,
	}
	if d.Word == "" {
		d.Word = word
	}
	return d, nil
}

// String renders the definition as "(<part of speech>) <text>".
func (d Definition) String() string {
	return fmt.Sprintf("(%s) %s", d.PartOfSpeech, d.Text)
}
