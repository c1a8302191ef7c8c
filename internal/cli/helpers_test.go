package cli

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"reportqa/internal/config"
	"reportqa/internal/engine"
	"reportqa/internal/engine/enginetest"
	"reportqa/internal/rag"
	"reportqa/internal/session"
	"reportqa/internal/spec"
	"reportqa/internal/testutil"
)

const sampleQuestions = "Questions,Topic\nAre emissions disclosed?,climate\nIs water usage reported?,water\n"

// engineStub replaces the engine factory for one test.
type engineStub struct {
	factoryCalls int
	engines      []*enginetest.Stub
	cached       bool
}

func stubEngines(t *testing.T, answer enginetest.AnswerFunc) *engineStub {
	t.Helper()
	stub := &engineStub{}
	original := engineFactory
	engineFactory = func(_ spec.Config, _ *zap.Logger, cache rag.VectorCache) (session.EngineFactory, error) {
		stub.factoryCalls++
		stub.cached = cache != nil
		return func(engine.Config) (engine.DocumentQAEngine, error) {
			eng := enginetest.NotReady(answer)
			stub.engines = append(stub.engines, eng)
			return eng, nil
		}, nil
	}
	t.Cleanup(func() { engineFactory = original })
	return stub
}

// writeProject scaffolds a config with results under out/ and returns the
// config path, a PDF path and a questions CSV path.
func writeProject(t *testing.T) (dir, specPath, pdfPath, csvPath string) {
	t.Helper()
	dir = t.TempDir()
	specPath = filepath.Join(dir, config.ConfigDirName, config.ConfigFileName)
	if err := config.Scaffold(specPath, "out"); err != nil {
		t.Fatalf("scaffold config: %v", err)
	}
	pdfPath = testutil.WriteFile(t, dir, "esg.pdf", []byte("%PDF-1.4 stub"))
	csvPath = testutil.WriteFile(t, dir, "questions.csv", []byte(sampleQuestions))
	return dir, specPath, pdfPath, csvPath
}
