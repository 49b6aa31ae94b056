package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

// LoadAll loads (or replaces) every embedded Lua library. Canvas autosave
// and the canvas flusher call into these functions with FCALL.
func LoadAll(ctx context.Context, rdb *redis.Client) error {
	files, err := fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}
	loaded := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}

		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return err
		}
		if err := rdb.FunctionLoadReplace(ctx, string(code)).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", f.Name(), err)
		}
		loaded++
		zap.L().Info("redis_functions.loaded", zap.String("file", f.Name()))
	}
	if loaded == 0 {
		return fmt.Errorf("no lua libraries embedded")
	}
	return nil
}
