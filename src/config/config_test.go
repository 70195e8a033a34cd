package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	conf := NewDefaultConfig()

	conf.SetDataDir("/tmp/murmur-test")

	if conf.DataDir != "/tmp/murmur-test" {
		t.Fatalf("DataDir should be /tmp/murmur-test, not %q", conf.DataDir)
	}

	expected := filepath.Join("/tmp/murmur-test", DefaultBadgerFile)
	if conf.DatabaseDir != expected {
		t.Fatalf("DatabaseDir should follow DataDir to %q, not %q", expected, conf.DatabaseDir)
	}
}

func TestSetDataDirKeepsExplicitDatabaseDir(t *testing.T) {
	conf := NewDefaultConfig()
	conf.DatabaseDir = "/somewhere/else"

	conf.SetDataDir("/tmp/murmur-test")

	if conf.DatabaseDir != "/somewhere/else" {
		t.Fatalf("an explicit DatabaseDir should be kept, not %q", conf.DatabaseDir)
	}
}

func TestLogLevel(t *testing.T) {
	if LogLevel("warn") != logrus.WarnLevel {
		t.Fatal("warn should parse to WarnLevel")
	}
	if LogLevel("nonsense") != logrus.DebugLevel {
		t.Fatal("unknown levels should fall back to DebugLevel")
	}
}

func TestDefaults(t *testing.T) {
	conf := NewDefaultConfig()

	if conf.StoreBackend != DefaultStoreBackend {
		t.Fatalf("StoreBackend should default to %q, not %q", DefaultStoreBackend, conf.StoreBackend)
	}
	if conf.AntiEntropyInterval != DefaultAntiEntropyInterval {
		t.Fatalf("AntiEntropyInterval should default to %v, not %v",
			DefaultAntiEntropyInterval, conf.AntiEntropyInterval)
	}
	if conf.StoreTimeout != DefaultStoreTimeout {
		t.Fatalf("StoreTimeout should default to %v, not %v", DefaultStoreTimeout, conf.StoreTimeout)
	}
}
