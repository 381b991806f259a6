package convert

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAppendImageSection(t *testing.T) {
	images := []ImageRef{
		{Filename: "img_001", SourceID: "12"},
		{Filename: "img_002", SourceID: "31"},
	}

	got := AppendImageSection("# 标题\n\n正文", images, "doc-1", "/api/v1")

	if !strings.Contains(got, "## 文档图像") {
		t.Fatalf("missing image section heading:\n%s", got)
	}
	if !strings.Contains(got, "**图 1**: ![img_001](/api/v1/documents/doc-1/images/img_001.png)") {
		t.Fatalf("missing first image line:\n%s", got)
	}
	if !strings.Contains(got, "**图 2**: ![img_002](/api/v1/documents/doc-1/images/img_002.png)") {
		t.Fatalf("missing second image line:\n%s", got)
	}
	if !strings.HasPrefix(got, "# 标题\n\n正文") {
		t.Fatalf("original markdown not preserved:\n%s", got)
	}
}

func TestAppendImageSectionEmptyListIsNoop(t *testing.T) {
	const markdown = "# 标题\n\n正文"
	if got := AppendImageSection(markdown, nil, "doc-1", "/api/v1"); got != markdown {
		t.Fatalf("markdown changed for empty image list:\n%s", got)
	}
}

func TestAppendImageSectionIdempotent(t *testing.T) {
	images := []ImageRef{{Filename: "img_001", SourceID: "12"}}

	once := AppendImageSection("正文", images, "doc-1", "/api/v1")
	twice := AppendImageSection(once, images, "doc-1", "/api/v1")

	if once != twice {
		t.Fatalf("second append modified markdown:\nfirst:\n%s\nsecond:\n%s", once, twice)
	}
	if n := strings.Count(twice, "## 文档图像"); n != 1 {
		t.Fatalf("image section count = %d, want 1", n)
	}
}

func TestRewriteImageRefs(t *testing.T) {
	images := []ImageRef{
		{Filename: "img_001", SourceID: "_page_0_Figure_1.jpeg"},
		{Filename: "img_002", SourceID: "_page_2_Picture_3.jpeg"},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare target",
			in:   "before ![](_page_0_Figure_1.jpeg) after",
			want: "before ![img_001](/api/v1/documents/doc-9/images/img_001.png) after",
		},
		{
			name: "dot slash prefix",
			in:   "![fig](./_page_0_Figure_1.jpeg)",
			want: "![img_001](/api/v1/documents/doc-9/images/img_001.png)",
		},
		{
			name: "images prefix",
			in:   "![](images/_page_2_Picture_3.jpeg)",
			want: "![img_002](/api/v1/documents/doc-9/images/img_002.png)",
		},
		{
			name: "dot slash images prefix",
			in:   "![](./images/_page_2_Picture_3.jpeg)",
			want: "![img_002](/api/v1/documents/doc-9/images/img_002.png)",
		},
		{
			name: "unknown id left byte identical",
			in:   "![](_page_9_Figure_9.jpeg)",
			want: "![](_page_9_Figure_9.jpeg)",
		},
		{
			name: "plain link untouched",
			in:   "[not an embed](_page_0_Figure_1.jpeg)",
			want: "[not an embed](_page_0_Figure_1.jpeg)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RewriteImageRefs(tc.in, images, "doc-9", "/api/v1", zerolog.Nop()); got != tc.want {
				t.Fatalf("RewriteImageRefs() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRewriteImageRefsIdempotent(t *testing.T) {
	images := []ImageRef{{Filename: "img_001", SourceID: "_page_0_Figure_1.jpeg"}}
	in := "x ![](_page_0_Figure_1.jpeg) y ![](_page_0_Figure_1.jpeg) z"

	once := RewriteImageRefs(in, images, "doc-9", "/api/v1", zerolog.Nop())
	twice := RewriteImageRefs(once, images, "doc-9", "/api/v1", zerolog.Nop())

	if once != twice {
		t.Fatalf("second pass modified markdown:\nfirst:  %q\nsecond: %q", once, twice)
	}
	if n := strings.Count(twice, "/api/v1/documents/doc-9/images/img_001.png"); n != 2 {
		t.Fatalf("rewritten reference count = %d, want 2", n)
	}
}
