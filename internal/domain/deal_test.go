package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		raw  string
		want string
	}{
		{"protocol relative", "https://www.ppomppu.co.kr/zboard/", "//cdn.ppomppu.co.kr/a.jpg", "https://cdn.ppomppu.co.kr/a.jpg"},
		{"root relative", "https://zod.kr", "/deal/123", "https://zod.kr/deal/123"},
		{"document relative", "https://www.ppomppu.co.kr/zboard/", "view.php?id=ppomppu&no=1", "https://www.ppomppu.co.kr/zboard/view.php?id=ppomppu&no=1"},
		{"already absolute", "https://zod.kr", "https://bbs.ruliweb.com/market/board/1020/read/1", "https://bbs.ruliweb.com/market/board/1020/read/1"},
		{"protocol relative without base", "", "//img.example.com/x.png", "https://img.example.com/x.png"},
		{"empty", "https://zod.kr", "", ""},
		{"javascript", "https://zod.kr", "javascript:void(0)", ""},
		{"fragment", "https://zod.kr", "#comments", ""},
		{"relative without base", "", "/deal/1", ""},
		{"non http scheme", "https://zod.kr", "mailto:a@b.c", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AbsoluteURL(tt.base, tt.raw)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, IsAbsoluteURL(got))
			}
		})
	}
}

func TestDealRecordValidate(t *testing.T) {
	ok := DealRecord{Source: SourcePpomppu, Title: "TV", Link: "https://www.ppomppu.co.kr/zboard/view.php?no=1"}
	assert.NoError(t, ok.Validate())

	noLink := ok
	noLink.Link = ""
	assert.True(t, errors.Is(noLink.Validate(), ErrMissingLink))

	relative := ok
	relative.Link = "/zboard/view.php?no=1"
	assert.True(t, errors.Is(relative.Validate(), ErrRelativeLink))

	noTitle := ok
	noTitle.Title = "  "
	assert.True(t, errors.Is(noTitle.Validate(), ErrMissingTitle))

	badSource := ok
	badSource.Source = "dcinside"
	assert.True(t, errors.Is(badSource.Validate(), ErrBadSource))
}

func TestParseSource(t *testing.T) {
	src, ok := ParseSource("ppomppu")
	assert.True(t, ok)
	assert.Equal(t, SourcePpomppu, src)

	src, ok = ParseSource("루리웹")
	assert.True(t, ok)
	assert.Equal(t, SourceRuliweb, src)

	src, ok = ParseSource(" ZOD ")
	assert.True(t, ok)
	assert.Equal(t, SourceZod, src)

	_, ok = ParseSource("clien")
	assert.False(t, ok)
}

func TestSourceReferer(t *testing.T) {
	assert.Equal(t, "https://www.ppomppu.co.kr/", SourcePpomppu.Referer())
	assert.Equal(t, DefaultReferer, Source("unknown").Referer())
	assert.Equal(t, "퀘이사존", SourceQuasarzone.DisplayName())
}
