package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const turnLogTimeFormat = "20060102_150405.000000"

// TurnLogDir maps an intent to its log subdirectory.
func TurnLogDir(intent string) string {
	switch intent {
	case "generate":
		return "generation"
	case "explain":
		return "explanation"
	default:
		return "chat"
	}
}

// WriteTurnLog writes record as a text file under root/<intent dir>/ and
// returns its path. The file name is the record timestamp followed by the
// conversation id, so a redelivered record rewrites its own file.
func WriteTurnLog(root string, record TurnRecord) (string, error) {
	dir := filepath.Join(root, TurnLogDir(record.Intent))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}
	name := strings.ReplaceAll(record.Timestamp.Format(turnLogTimeFormat), ".", "_")
	if id := fileSafe(record.ConversationID); id != "" {
		name += "_" + id
	}
	name += ".txt"
	path := filepath.Join(dir, name)

	body := fmt.Sprintf("User Query:\n%s\n\nModel Response:\n%s\n", record.UserTask, record.Response)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// fileSafe keeps letters, digits, '-' and '_' and replaces everything else with '-'.
func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
