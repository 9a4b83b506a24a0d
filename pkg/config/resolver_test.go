package config

import (
	"reflect"
	"testing"
)

func TestConfigResolver(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		t.Setenv("TEST_KEY", "env_value")
		t.Setenv("ENV_ONLY", "env_value")

		flagSource := NewFlagSource()
		flagSource.Set("TEST_KEY", "flag_value")

		resolver := NewConfigResolver(flagSource, &EnvSource{})

		if value := resolver.ResolveString("TEST_KEY", "default"); value != "flag_value" {
			t.Errorf("expected 'flag_value', got '%s'", value)
		}
		if value := resolver.ResolveString("ENV_ONLY", "default"); value != "env_value" {
			t.Errorf("expected 'env_value', got '%s'", value)
		}
		if value := resolver.ResolveString("MISSING_KEY", "default"); value != "default" {
			t.Errorf("expected 'default', got '%s'", value)
		}
	})

	t.Run("int resolution", func(t *testing.T) {
		flagSource := NewFlagSource()
		flagSource.Set("TEST_INT", 100)
		t.Setenv("TEST_INT", "50")

		resolver := NewConfigResolver(flagSource, &EnvSource{})
		if value := resolver.ResolveInt("TEST_INT", 1); value != 100 {
			t.Errorf("expected 100, got %d", value)
		}
		if value := resolver.ResolveInt("MISSING_INT", 42); value != 42 {
			t.Errorf("expected 42, got %d", value)
		}
	})

	t.Run("float resolution", func(t *testing.T) {
		t.Setenv("TEST_FLOAT", "3.14")
		resolver := NewConfigResolver(NewFlagSource(), &EnvSource{})
		if value := resolver.ResolveFloat("TEST_FLOAT", 1.0); value != 3.14 {
			t.Errorf("expected 3.14, got %f", value)
		}
	})

	t.Run("bool resolution keeps explicit false", func(t *testing.T) {
		flagSource := NewFlagSource()
		flagSource.Set("TEST_BOOL", false)
		t.Setenv("TEST_BOOL", "true")

		resolver := NewConfigResolver(flagSource, &EnvSource{})
		if resolver.ResolveBool("TEST_BOOL", true) {
			t.Error("expected flag false to win over env true and default")
		}
		if !resolver.ResolveBool("MISSING_BOOL", true) {
			t.Error("expected default")
		}
	})

	t.Run("file is lowest precedence", func(t *testing.T) {
		file, err := NewFileSource(writeConfig(t, "relay_mode: dedicated\nrelay_event_name: from_file\n"))
		if err != nil {
			t.Fatal(err)
		}
		t.Setenv(KeyMode, "shared")

		resolver := NewConfigResolver(NewFlagSource(), &EnvSource{}, file)
		if v := resolver.ResolveString(KeyMode, DefaultMode); v != "shared" {
			t.Errorf("expected env to beat file, got %s", v)
		}
		if v := resolver.ResolveString(KeyEventName, DefaultEventName); v != "from_file" {
			t.Errorf("expected file to beat default, got %s", v)
		}
	})

	t.Run("list resolution", func(t *testing.T) {
		t.Setenv("TEST_LIST", " enwiki, ,dewiki,enwiki ")
		resolver := NewConfigResolver(&EnvSource{})
		got := resolver.ResolveList("TEST_LIST")
		if want := []string{"enwiki", "dewiki"}; !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}
