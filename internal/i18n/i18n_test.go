package i18n

import (
	"context"
	"strings"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestReportEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NothingToDo")
	if !strings.Contains(got, "Nothing to do") {
		t.Errorf("T(NothingToDo) = %q", got)
	}
}

func TestReportChinese(t *testing.T) {
	ctx := initLang(t, "zh")

	got := T(ctx, "NothingToDo")
	if !strings.Contains(got, "没有任务") {
		t.Errorf("T(NothingToDo) = %q", got)
	}
}

func TestTemplateData(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "RunSummary", map[string]any{"Processed": 7, "Failed": 2})
	if got != "Pass finished: 7 processed, 2 failed." {
		t.Errorf("Td(RunSummary) = %q", got)
	}
}

func TestPluralQueueStatus(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tn(ctx, "QueueStatus", 1, map[string]any{"Queue": "manual-exam"})
	if got1 != "1 entry needs manual attention in manual-exam." {
		t.Errorf("Tn(QueueStatus, 1) = %q", got1)
	}

	got5 := Tn(ctx, "QueueStatus", 5, map[string]any{"Queue": "manual-exam"})
	if got5 != "5 entries need manual attention in manual-exam." {
		t.Errorf("Tn(QueueStatus, 5) = %q", got5)
	}
}

func TestMissingKeyFallsBackToID(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the key itself", got)
	}
}
