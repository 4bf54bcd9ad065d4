package engine

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// diagnosisPatterns are calc.log fragments that explain why a
// calculation produced no results despite a clean exit.
var diagnosisPatterns = []string{
	"error",
	"exception",
	"failed",
	"did not converge",
	"no convergence",
	"invalid geometry",
	"aborted",
}

// DiagnoseCalcLog scans calc.log in the attempt directory for a line
// explaining the failure. Returns the last matching line, or "".
func DiagnoseCalcLog(dir string) string {
	f, err := os.Open(filepath.Join(dir, "calc.log"))
	if err != nil {
		return ""
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)
		for _, pat := range diagnosisPatterns {
			if strings.Contains(lower, pat) {
				last = line
				break
			}
		}
	}
	return last
}
