package util

import (
	"github.com/ValentinKolb/stacKV/lib/common"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"testing"
	"time"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}
	if WrapString("") != "" {
		t.Errorf("expected an empty string")
	}
}

func TestGetChainConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test"}
	SetupChainFlags(cmd)
	cmd.PersistentFlags().String("codec", "json", "")
	if err := cmd.PersistentFlags().Parse([]string{"--layers", "Memory, retry,bolt", "--retries", "5", "--retry-delay", "10ms"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		t.Fatalf("BindPFlags failed: %v", err)
	}

	conf, err := GetChainConfig()
	if err != nil {
		t.Fatalf("GetChainConfig failed: %v", err)
	}
	if diff := cmp.Diff([]string{"memory", "retry", "bolt"}, conf.Layers); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}
	if conf.Retries != 5 || conf.RetryDelay != 10*time.Millisecond {
		t.Errorf("unexpected retry settings: %d, %v", conf.Retries, conf.RetryDelay)
	}
	if conf.RemoteFormat != common.RemoteFormatCSV || conf.RemoteInterval != 5*time.Minute {
		t.Errorf("unexpected remote defaults: %q, %v", conf.RemoteFormat, conf.RemoteInterval)
	}

	if c, err := GetCodec(); err != nil || c.Name() != "json" {
		t.Errorf("expected the json codec, got %v", err)
	}
}

func TestGetChainConfigInvalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("layers", "memory")
	viper.Set("remote-format", "xml")
	if _, err := GetChainConfig(); err == nil {
		t.Errorf("expected an error for an unknown remote format")
	}

	viper.Set("layers", " , ")
	if _, err := GetChainConfig(); err == nil {
		t.Errorf("expected an error for an empty layer list")
	}
}
