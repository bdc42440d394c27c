package cache

import "testing"

func TestKeysAreUnambiguous(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{
			name: "entity owner and service boundary",
			a:    EntityKey(EntityService, "a:b", "twitter"),
			b:    EntityKey(EntityService, "a", "b:twitter"),
		},
		{
			name: "escaped colon vs literal escape",
			a:    EntityKey(EntityService, "a:b", "x"),
			b:    EntityKey(EntityService, "a%3Ab", "x"),
		},
		{
			name: "metric name boundary",
			a:    MetricKey("u1", "twitter:followers", "x"),
			b:    MetricKey("u1", "twitter", "followers:x"),
		},
		{
			name: "entity type vs id",
			a:    EntityKey(EntityUser, "42"),
			b:    EntityKey(EntityService, "42"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a == tt.b {
				t.Errorf("keys collide: %q", tt.a)
			}
		})
	}
}

func TestKeysKeepPlainIDsReadable(t *testing.T) {
	if got, want := EntityKey(EntityService, "42", "twitter"), "entity:service:42:twitter"; got != want {
		t.Errorf("EntityKey() = %q, want %q", got, want)
	}
	if got, want := MetricKey("42", "youtube", "followers"), "metric:42:youtube:followers"; got != want {
		t.Errorf("MetricKey() = %q, want %q", got, want)
	}
}
