// Package gmail implements the email source against the Gmail REST API.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure Source implements model.EmailSource.
var _ model.EmailSource = (*Source)(nil)

// Source lists and mutates the operator's mailbox over the Gmail REST API.
type Source struct {
	baseURL      string
	accessToken  string
	extraQuery   string // appended to the list query, optional
	lookbackDays int
	client       *http.Client
}

// New creates a source. baseURL is the Gmail API root, normally
// https://gmail.googleapis.com/gmail/v1.
func New(baseURL, accessToken, extraQuery string, lookbackDays int, client *http.Client) *Source {
	return &Source{
		baseURL:      baseURL,
		accessToken:  accessToken,
		extraQuery:   extraQuery,
		lookbackDays: lookbackDays,
		client:       client,
	}
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

type messageResponse struct {
	ID      string      `json:"id"`
	Payload messagePart `json:"payload"`
	Snippet string      `json:"snippet"`
}

type messagePart struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []messagePart `json:"parts"`
}

// ListRecent returns unread inbox messages from the lookback window, oldest
// first (the order the pipeline processes them in).
func (s *Source) ListRecent(ctx context.Context) ([]model.EmailMessage, error) {
	query := fmt.Sprintf("in:inbox is:unread newer_than:%dd", s.lookbackDays)
	if s.extraQuery != "" {
		query += " " + s.extraQuery
	}

	// The list endpoint pages; follow nextPageToken so a large backlog
	// still honors the full lookback window.
	var ids []string
	pageToken := ""
	for {
		listURL := fmt.Sprintf("%s/users/me/messages?q=%s", s.baseURL, url.QueryEscape(query))
		if pageToken != "" {
			listURL += "&pageToken=" + url.QueryEscape(pageToken)
		}
		var list listResponse
		if err := s.getJSON(ctx, listURL, &list); err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}
		for _, m := range list.Messages {
			ids = append(ids, m.ID)
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	// The API returns newest first; reverse into arrival order.
	msgs := make([]model.EmailMessage, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		msgURL := fmt.Sprintf("%s/users/me/messages/%s?format=full", s.baseURL, id)
		var mr messageResponse
		if err := s.getJSON(ctx, msgURL, &mr); err != nil {
			return nil, fmt.Errorf("fetching message %s: %w", id, err)
		}
		msgs = append(msgs, toEmail(mr))
	}
	return msgs, nil
}

// MarkRead clears the UNREAD label.
func (s *Source) MarkRead(ctx context.Context, id string) error {
	return s.modifyLabels(ctx, id, []string{"UNREAD"})
}

// MarkReadAndArchive clears UNREAD and removes the message from the inbox.
func (s *Source) MarkReadAndArchive(ctx context.Context, id string) error {
	return s.modifyLabels(ctx, id, []string{"UNREAD", "INBOX"})
}

func (s *Source) modifyLabels(ctx context.Context, id string, remove []string) error {
	body, err := json.Marshal(map[string]any{"removeLabelIds": remove})
	if err != nil {
		return fmt.Errorf("marshal modify request: %w", err)
	}

	modURL := fmt.Sprintf("%s/users/me/messages/%s/modify", s.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, modURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create modify request for %s: %w", id, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("modifying labels for %s: %w", id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("modify labels for %s", id)}
	}
	return nil
}

func (s *Source) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &model.HTTPError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toEmail(mr messageResponse) model.EmailMessage {
	msg := model.EmailMessage{ID: mr.ID}
	for _, h := range mr.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.From = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}

	msg.Body = extractText(mr.Payload)
	if msg.Body == "" {
		msg.Body = mr.Snippet
	}
	return msg
}

// extractText walks the MIME tree preferring text/plain parts, falling back
// to HTML only when no plain part exists anywhere in the tree.
func extractText(part messagePart) string {
	if text := findPart(part, "text/plain"); text != "" {
		return text
	}
	return findPart(part, "text/html")
}

func findPart(part messagePart, mimePrefix string) string {
	if strings.HasPrefix(part.MimeType, mimePrefix) && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, p := range part.Parts {
		if text := findPart(p, mimePrefix); text != "" {
			return text
		}
	}
	return ""
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}
