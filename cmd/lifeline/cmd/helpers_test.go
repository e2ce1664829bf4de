package cmd

import (
	"testing"

	"github.com/spf13/viper"
)

// resetTestViper clears the global viper state a previous test may have
// loaded, so loadConfig sees only defaults plus the current directory.
func resetTestViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
}
