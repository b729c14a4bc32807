package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TranscriptExt is the extension of every persisted transcript.
const TranscriptExt = ".txt"

// Store keeps uploaded audio and transcripts in two flat directories.
// Every write replaces the previous content of the same name.
type Store struct {
	uploadsDir     string
	transcriptsDir string
}

// New creates both directories if needed and returns a ready store.
func New(uploadsDir, transcriptsDir string) (*Store, error) {
	for _, dir := range []string{uploadsDir, transcriptsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: failed to create %s: %w", dir, err)
		}
	}

	return &Store{
		uploadsDir:     uploadsDir,
		transcriptsDir: transcriptsDir,
	}, nil
}

// UploadsDir returns the directory holding uploaded audio.
func (s *Store) UploadsDir() string { return s.uploadsDir }

// TranscriptsDir returns the directory holding transcripts.
func (s *Store) TranscriptsDir() string { return s.transcriptsDir }

// CleanName reduces name to its final path element.
func CleanName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "" || base == "." || base == ".." || base == "/" || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

// AudioPath returns where the audio file called name lives.
func (s *Store) AudioPath(name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.uploadsDir, clean), nil
}

// TranscriptPath returns where the transcript for stem lives.
func (s *Store) TranscriptPath(stem string) (string, error) {
	clean, err := CleanName(stem)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.transcriptsDir, clean+TranscriptExt), nil
}

// SaveAudio streams r into the uploads directory under name.
func (s *Store) SaveAudio(name string, r io.Reader) (string, error) {
	path, err := s.AudioPath(name)
	if err != nil {
		return "", err
	}

	if err := writeFile(path, r); err != nil {
		return "", fmt.Errorf("storage: save audio %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// OpenAudio opens the audio file called name for reading.
func (s *Store) OpenAudio(name string) (*os.File, error) {
	path, err := s.AudioPath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, wrapNotFound(err, "open audio", name)
	}
	return f, nil
}

// ReadAudio returns the full contents of the audio file called name.
func (s *Store) ReadAudio(name string) ([]byte, error) {
	path, err := s.AudioPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapNotFound(err, "read audio", name)
	}
	return data, nil
}

// HasAudio reports whether an audio file called name exists.
func (s *Store) HasAudio(name string) bool {
	path, err := s.AudioPath(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SaveTranscript writes text as the transcript for stem.
func (s *Store) SaveTranscript(stem, text string) (string, error) {
	path, err := s.TranscriptPath(stem)
	if err != nil {
		return "", err
	}

	if err := writeFile(path, strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("storage: save transcript %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// ReadTranscript returns the transcript stored for stem.
func (s *Store) ReadTranscript(stem string) (string, error) {
	path, err := s.TranscriptPath(stem)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", wrapNotFound(err, "read transcript", stem)
	}
	return string(data), nil
}

// writeFile writes through a temp file in the target directory and renames
// it into place, so readers see either the old or the new content.
func writeFile(path string, r io.Reader) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func wrapNotFound(err error, op, name string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: %s %q: %w", op, name, ErrNotFound)
	}
	return fmt.Errorf("storage: %s %q: %w", op, name, err)
}
