package log

import (
	"github.com/ethereum/go-ethereum/log"
)

// SetupFileLogging installs a rotating file sink on the go-ethereum root
// logger, replacing whatever handler was previously set. Callers that also
// want terminal output should wrap the returned writer's handler with
// log.MultiHandler alongside their own log.StreamHandler(os.Stderr, ...).
func SetupFileLogging(path string, maxBytesSize int64, maxBackups int, rotateHours uint, lvl log.Lvl) *AsyncFileWriter {
	w := NewAsyncFileWriter(path, maxBytesSize, maxBackups, rotateHours)
	w.Start()

	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(w, log.LogfmtFormat())))
	return w
}
