package parse

import "testing"

type recipe struct {
	Name     string   `json:"name"`
	Servings int      `json:"servings"`
	Steps    []string `json:"steps"`
}

func TestStringAsStruct(t *testing.T) {
	got, err := StringAs[recipe](`{"name":"soup","servings":4,"steps":["chop","boil"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "soup" || got.Servings != 4 || len(got.Steps) != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestStringAsRepairsDamagedJSON(t *testing.T) {
	got, err := StringAs[recipe](`{name: 'soup', servings: 4,}`)
	if err != nil {
		t.Fatalf("expected repair to succeed: %v", err)
	}
	if got.Name != "soup" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestStringAsStripsMarkdownFence(t *testing.T) {
	content := "```json\n{\"name\":\"stew\",\"servings\":2}\n```"
	got, err := StringAs[recipe](content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "stew" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestStringAsPrimitives(t *testing.T) {
	if got, err := StringAs[int]("42"); err != nil || got != 42 {
		t.Errorf("int: got %d, err %v", got, err)
	}
	if got, err := StringAs[bool]("true"); err != nil || !got {
		t.Errorf("bool: got %v, err %v", got, err)
	}
	if got, err := StringAs[float64]("3.5"); err != nil || got != 3.5 {
		t.Errorf("float64: got %v, err %v", got, err)
	}
	if got, err := StringAs[string]("as-is"); err != nil || got != "as-is" {
		t.Errorf("string: got %q, err %v", got, err)
	}
	if _, err := StringAs[int]("not a number"); err == nil {
		t.Error("expected error for invalid int")
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`{"a":1}`:                 `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Errorf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComplete(t *testing.T) {
	if !Complete(`{"a":1}`) {
		t.Error("complete object reported incomplete")
	}
	if Complete(`{"a":`) {
		t.Error("partial object reported complete")
	}
	if Complete("") {
		t.Error("empty string reported complete")
	}
}
