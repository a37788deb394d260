package migrations

import (
	"errors"
	"strings"
	"testing"
)

func TestPending(t *testing.T) {
	all, err := Pending(func(string) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(all) == 0 || all[0] != "001_animations.sql" {
		t.Fatalf("pending = %v", all)
	}

	none, err := Pending(func(string) (bool, error) { return true, nil })
	if err != nil || len(none) != 0 {
		t.Errorf("pending after apply = %v, %v", none, err)
	}

	_, err = Pending(func(string) (bool, error) { return false, errors.New("db gone") })
	if err == nil || !strings.Contains(err.Error(), "db gone") {
		t.Errorf("err = %v", err)
	}
}

func TestMigrationsCreateAnimations(t *testing.T) {
	body, err := fs.ReadFile("001_animations.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS animations") {
		t.Error("001_animations.sql does not create the animations table")
	}
}
