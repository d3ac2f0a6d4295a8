package collect

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const topicHTML = `<html><body>
<div class="topic">
  <a href="https://kc.zhixueyun.com/#/study/course/detail/9f8b4b1c-0000-0000-0000-000000000001">必修课程一</a>
  <a href="https://kc.zhixueyun.com/#/study/subject/detail/9f8b4b1c-0000-0000-0000-000000000002">年度专题</a>
  <a href="https://kc.zhixueyun.com/#/study/course/detail/9f8b4b1c-0000-0000-0000-000000000001">重复链接</a>
  <a href="https://kc.zhixueyun.com/#/news/detail/123">公告</a>
  <a href="https://example.com/outside">外部链接</a>
  <a href="https://kc.zhixueyun.com/#/study/course/detail/not-a-uuid">坏链接</a>
</div>
</body></html>`

func TestHarvest(t *testing.T) {
	urls, err := Harvest(topicHTML)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	want := []string{
		"https://kc.zhixueyun.com/#/study/course/detail/9f8b4b1c-0000-0000-0000-000000000001",
		"https://kc.zhixueyun.com/#/study/subject/detail/9f8b4b1c-0000-0000-0000-000000000002",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("Harvest = %v, want %v", urls, want)
	}
}

func TestHarvestEmptyPage(t *testing.T) {
	urls, err := Harvest(`<html><body><p>nothing here</p></body></html>`)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("Harvest = %v, want empty", urls)
	}
}

func TestWriteList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	urls := []string{"https://kc.zhixueyun.com/#/study/course/detail/9f8b4b1c-0000-0000-0000-000000000001"}
	if err := WriteList(path, urls); err != nil {
		t.Fatalf("WriteList: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != urls[0] {
		t.Errorf("file content = %q", got)
	}
}
