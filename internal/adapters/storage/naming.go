// Package storage holds the upload sinks for recorded audio: a local
// directory, an optional S3-compatible bucket, and the pipeline that falls
// back from one to the other.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultTag = "local"
	fileExt    = ".wav"
)

var (
	ErrNotAudio    = errors.New("only audio files are allowed")
	ErrInvalidName = errors.New("invalid file name")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)
)

// FileName is <conversation>_<participant>_<tag>_<unix millis>.wav.
// Participant and tag never contain '_', so the last three fields always
// parse back unambiguously.
func FileName(meta core.Upload, at time.Time) string {
	tag := meta.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return fmt.Sprintf("%s_%s_%s_%d%s",
		safe(string(meta.ConversationID)), field(string(meta.ParticipantID)), field(tag), at.UnixMilli(), fileExt)
}

func safe(s string) string {
	return unsafeChars.ReplaceAllString(s, "-")
}

func field(s string) string {
	return strings.ReplaceAll(safe(s), "_", "-")
}

// parseName splits a stored name whose conversation part is conv into its
// participant, tag and timestamp. ok is false for any other conversation.
func parseName(name, conv string) (participant, tag string, ms int64, ok bool) {
	rest, found := strings.CutPrefix(name, conv+"_")
	if !found {
		return "", "", 0, false
	}
	rest, found = strings.CutSuffix(rest, fileExt)
	if !found {
		return "", "", 0, false
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, false
	}
	ms, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", 0, false
	}
	return parts[0], parts[1], ms, true
}

// CheckName rejects anything that is not a bare file name.
func CheckName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// DetectAudio sniffs the first bytes of an upload. Browser recordings in
// WebM or Ogg containers are accepted alongside audio/* types.
func DetectAudio(head []byte) (string, error) {
	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || m.Is("video/webm") || m.Is("application/ogg") {
			return detected.String(), nil
		}
	}
	return detected.String(), fmt.Errorf("%w: got %s", ErrNotAudio, detected.String())
}
