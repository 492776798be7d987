package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTopicName(t *testing.T) {
	cases := []struct {
		name  string
		topic string
		want  bool
	}{
		{"plain", "a/b/c", true},
		{"empty", "", false},
		{"plus_wildcard", "a/+/c", false},
		{"hash_wildcard", "a/#", false},
		{"dollar_sys_allowed_as_name", "$SYS/broker/uptime", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validTopicName([]byte(tc.topic)))
		})
	}
}

func TestValidTopicFilter(t *testing.T) {
	cases := []struct {
		name   string
		filter string
		want   bool
	}{
		{"plain", "a/b/c", true},
		{"empty", "", false},
		{"whole_level_plus", "a/+/c", true},
		{"trailing_hash", "a/b/#", true},
		{"hash_not_last_level", "a/#/c", false},
		{"plus_partial_level", "a/b+/c", false},
		{"hash_partial_level", "a/b#/c", false},
		{"shared_group", "$share/g1/a/b", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, validTopicFilter([]byte(tc.filter)))
		})
	}
}

func TestIsSystemTopic(t *testing.T) {
	assert.True(t, isSystemTopic([]byte("$SYS/broker/uptime")))
	assert.False(t, isSystemTopic([]byte("sensors/temp")))
	assert.False(t, isSystemTopic([]byte("$share/g1/a/b")), "shared-subscription prefix is not a system topic")
	assert.False(t, isSystemTopic(nil))
}
