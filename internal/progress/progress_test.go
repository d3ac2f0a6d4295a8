package progress

import (
	"testing"

	"github.com/jaykwok/course-afk/internal/model"
)

func TestIsLearned(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", true},
		{"finished chapter", "视频 10:00 已学习", true},
		{"needs study", "视频 10:00 需学 80%", false},
		{"needs restudy", "文档 需再学", false},
		{"remaining marker inside sentence", "还需学 50%", false},
		{"unrelated percentage", "已学习 100%", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLearned(tt.text); got != tt.want {
				t.Errorf("IsLearned(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTimeToSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1:02:03", 3730}, // 3723 rounded up to nearest 10
		{"5:00", 300},
		{"10:00", 600},
		{"0:09", 10},
		{"00:00", 0},
		{"12:34:56", 45300}, // 45296 rounded up
		{"时长 5:00 已看", 300},
		{"no durations here", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := TimeToSeconds(tt.in); got != tt.want {
			t.Errorf("TimeToSeconds(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRemainingDwell(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantRemaining int
		wantTotal     int
		wantErr       bool
	}{
		{"pair of tokens", "10:00 还需再学 05:00", 300, 600, false},
		{"single token defaults to 80 percent", "10:00", 480, 600, false},
		{"remaining percentage", "视频 10:00 还需学 50%", 300, 600, false},
		{"watched percentage against threshold", "视频 10:00 已学习 30%", 300, 600, false},
		{"watched beyond threshold clamps to zero", "视频 10:00 已学习 95%", 0, 600, false},
		{"remaining exceeds total is capped", "05:00 还需再学 10:00", 300, 300, false},
		{"rounds up to full minute", "10:00 还需再学 0:30", 60, 600, false},
		{"no tokens", "还需学 50%", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining, total, err := RemainingDwell(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("RemainingDwell(%q): %v", tt.text, err)
			}
			if remaining != tt.wantRemaining || total != tt.wantTotal {
				t.Errorf("RemainingDwell(%q) = (%d, %d), want (%d, %d)",
					tt.text, remaining, total, tt.wantRemaining, tt.wantTotal)
			}
			if remaining > total {
				t.Errorf("remaining %d exceeds total %d", remaining, total)
			}
			if remaining%60 != 0 {
				t.Errorf("remaining %d is not a multiple of 60", remaining)
			}
		})
	}
}

func TestStatusFromCell(t *testing.T) {
	tests := []struct {
		cell string
		want model.ExamStatus
	}{
		{"及格", model.ExamPassed},
		{" 及格 ", model.ExamPassed},
		{"待评卷", model.ExamPending},
		{"不及格", model.ExamFailed},
		{"缺考", model.ExamFailed},
		{"", model.ExamFailed},
	}
	for _, tt := range tests {
		if got := StatusFromCell(tt.cell); got != tt.want {
			t.Errorf("StatusFromCell(%q) = %q, want %q", tt.cell, got, tt.want)
		}
	}
}

func TestInExam(t *testing.T) {
	if !InExam("最高分：考试中") {
		t.Error("InExam should detect the in-exam badge")
	}
	if InExam("最高分：90分") {
		t.Error("InExam false positive")
	}
}

func TestRemainingAttempts(t *testing.T) {
	tests := []struct {
		text   string
		wantN  int
		wantOK bool
	}{
		{"开始考试", 0, false},
		{"开始考试（剩余3次）", 3, true},
		{"考试 剩余 1 次", 1, true},
		{"剩余次数不限", 0, true}, // quota present but unreadable: treat as exhausted
	}
	for _, tt := range tests {
		n, ok := RemainingAttempts(tt.text)
		if n != tt.wantN || ok != tt.wantOK {
			t.Errorf("RemainingAttempts(%q) = (%d, %v), want (%d, %v)", tt.text, n, ok, tt.wantN, tt.wantOK)
		}
	}
}
