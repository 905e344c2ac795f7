package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	data, err := Files.ReadFile("001_init.sql")
	if err != nil {
		t.Fatalf("expected embedded migration, got error: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("embedded migration is empty")
	}
}

func TestMigrationsCreateChatTables(t *testing.T) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	var all strings.Builder
	for _, name := range names {
		data, err := Files.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		all.Write(data)
	}
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS messages",
		"CREATE TABLE IF NOT EXISTS ai_tasks",
		"UNIQUE (user_id, invocation_id)",
		"pg_notify('chat_messages'",
	} {
		if !strings.Contains(all.String(), want) {
			t.Errorf("migrations missing %q", want)
		}
	}
}
