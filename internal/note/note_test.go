package note

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNote_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Note
	}{
		{
			name:  "string id",
			input: `{"id":"01HZY3ZK6M0000000000000000","title":"t","content":"c","createdAt":1,"updatedAt":2}`,
			want:  Note{ID: "01HZY3ZK6M0000000000000000", Title: "t", Content: "c", CreatedAt: 1, UpdatedAt: 2},
		},
		{
			name:  "legacy numeric id",
			input: `{"id":1700000000000,"title":"old","content":"body","createdAt":1700000000000,"updatedAt":1700000000500}`,
			want:  Note{ID: "1700000000000", Title: "old", Content: "body", CreatedAt: 1700000000000, UpdatedAt: 1700000000500},
		},
		{
			name:  "missing title and content",
			input: `{"id":"a","createdAt":5,"updatedAt":5}`,
			want:  Note{ID: "a", CreatedAt: 5, UpdatedAt: 5},
		},
		{
			name:  "null id",
			input: `{"id":null,"content":"x"}`,
			want:  Note{Content: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Note
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNote_UnmarshalJSON_InvalidID(t *testing.T) {
	var n Note
	if err := json.Unmarshal([]byte(`{"id":{"nested":true}}`), &n); err == nil {
		t.Fatal("expected error for object id")
	}
}

func TestNote_MarshalJSON_FieldNames(t *testing.T) {
	data, err := json.Marshal(Note{ID: "a", Title: "t", Content: "c", CreatedAt: 1, UpdatedAt: 2})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, field := range []string{`"id"`, `"title"`, `"content"`, `"createdAt"`, `"updatedAt"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("marshaled note %s missing field %s", data, field)
		}
	}
}

func TestMillisRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if got := Time(Millis(now)); !got.Equal(now) {
		t.Errorf("Time(Millis(now)) = %v, want %v", got, now)
	}
}
