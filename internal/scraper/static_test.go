package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
)

const ppomppuPage = `<html><body>
<table id="revolution_main_table">
  <tr class="baseList baseList-notice">
    <td class="title"><a class="baseList-title" href="view.php?id=ppomppu&amp;no=100">[공지] 게시판 규칙</a></td>
  </tr>
  <tr class="baseList">
    <td class="title"><img src="//cdn.ppomppu.co.kr/a.jpg"><a class="baseList-title" href="view.php?id=ppomppu&amp;no=1">[쿠팡] 삼성 TV 50인치 500,000원/무료배송(2)</a></td>
    <td><span class="baseList-name">홍길동</span></td>
  </tr>
  <tr class="baseList">
    <td class="title"><a class="baseList-title" href="view.php?id=freeboard&amp;no=2">자유게시판 글</a></td>
  </tr>
  <tr class="baseList">
    <td class="title"><a class="baseList-title" href="view.php?id=ppomppu&amp;no=3">LG 그램 16 1,290,000원</a></td>
  </tr>
  <tr class="baseList">
    <td class="title"><a class="baseList-title">링크 없는 글</a></td>
  </tr>
  <tr class="baseList">
    <td class="title"><a class="baseList-title" href="view.php?id=ppomppu&amp;no=1">[쿠팡] 삼성 TV 50인치 500,000원/무료배송(2)</a></td>
  </tr>
</table>
</body></html>`

func ppomppuSite(serverURL string) sources.Site {
	return sources.Site{
		Source:        domain.SourcePpomppu,
		Kind:          sources.KindStatic,
		ListURL:       serverURL + "/zboard/zboard.php?id=ppomppu",
		BaseURL:       serverURL + "/zboard/",
		MaxItems:      20,
		Timeout:       5 * time.Second,
		Rows:          []string{"table#missing tr", "table#revolution_main_table tr.baseList"},
		Skip:          []string{".baseList-notice"},
		LinkContains:  "id=ppomppu",
		DefaultAuthor: domain.AuthorUnknown,
		Fields: sources.Fields{
			Title:     []sources.Rule{{Selector: "td.title a.baseList-title"}},
			Link:      []sources.Rule{{Selector: "td.title a.baseList-title", Attr: "href"}},
			Author:    []sources.Rule{{Selector: "span.baseList-name"}},
			Thumbnail: []sources.Rule{{Selector: "td.title img", Attr: "src"}},
		},
	}
}

func TestStaticAdapterExtractsEUCKRPage(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(ppomppuPage)
	require.NoError(t, err)

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	a := NewStatic(ppomppuSite(srv.URL), "test-agent", srv.Client(), logger.NewNop())
	recs := a.Fetch(context.Background())

	assert.Equal(t, "test-agent", gotUA)
	require.Len(t, recs, 2)

	assert.Equal(t, domain.DealRecord{
		Thumbnail: "http://cdn.ppomppu.co.kr/a.jpg",
		Source:    domain.SourcePpomppu,
		Author:    "홍길동",
		Title:     "삼성 TV 50인치",
		Price:     "500,000원",
		Shipping:  domain.ShippingFree,
		Link:      srv.URL + "/zboard/view.php?id=ppomppu&no=1",
	}, recs[0])

	assert.Equal(t, "LG 그램 16", recs[1].Title)
	assert.Equal(t, "1,290,000원", recs[1].Price)
	assert.Equal(t, domain.ShippingUnknown, recs[1].Shipping)
	assert.Equal(t, domain.AuthorUnknown, recs[1].Author)
	assert.Empty(t, recs[1].Thumbnail)

	for _, r := range recs {
		assert.NoError(t, r.Validate())
	}
}

func TestStaticAdapterCapsAtMaxItems(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<table id="revolution_main_table">`)
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<tr class="baseList"><td class="title"><a class="baseList-title" href="view.php?id=ppomppu&amp;no=%d">상품 %d</a></td></tr>`, i, i)
	}
	b.WriteString(`</table>`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	recs := NewStatic(ppomppuSite(srv.URL), "ua", srv.Client(), logger.NewNop()).Fetch(context.Background())
	require.Len(t, recs, 20)
	assert.Equal(t, "상품 0", recs[0].Title)
	assert.Equal(t, "상품 19", recs[19].Title)
}

func TestStaticAdapterFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewStatic(ppomppuSite(srv.URL), "ua", srv.Client(), logger.NewNop())
	assert.Empty(t, a.Fetch(context.Background()))

	_, err := a.Scrape(context.Background())
	assert.ErrorContains(t, err, "unexpected status 403")
}

func TestStaticAdapterNoMatchingRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div>redesigned</div></body></html>`))
	}))
	defer srv.Close()

	recs, err := NewStatic(ppomppuSite(srv.URL), "ua", srv.Client(), logger.NewNop()).Scrape(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStaticAdapterDetailThumbnails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/market/board/1020", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<table>
<tr class="table_body blocktarget notice"><td><a class="deco" href="/market/board/1020/read/0">공지</a></td></tr>
<tr class="table_body blocktarget"><td><a class="deco" href="/market/board/1020/read/1">닌텐도 스위치 298,000원</a></td><td class="writer"><a>루리</a></td></tr>
<tr class="table_body blocktarget"><td><a class="deco" href="/market/board/1020/read/2">에어팟 프로 무배</a></td></tr>
</table>`))
	})
	mux.HandleFunc("/market/board/1020/read/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div class="view_content"><p>본문</p><img data-src="/img/switch.jpg"></div>`))
	})
	mux.HandleFunc("/market/board/1020/read/2", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	site := sources.Site{
		Source:          domain.SourceRuliweb,
		Kind:            sources.KindStatic,
		ListURL:         srv.URL + "/market/board/1020",
		BaseURL:         srv.URL + "/",
		MaxItems:        20,
		Timeout:         5 * time.Second,
		Rows:            []string{"tr.table_body.blocktarget"},
		Skip:            []string{".notice"},
		DetailThumbnail: []string{"div.view_content img"},
		DetailTimeout:   2 * time.Second,
		DefaultAuthor:   domain.AuthorUnknown,
		Fields: sources.Fields{
			Title:  []sources.Rule{{Selector: "a.deco"}},
			Link:   []sources.Rule{{Selector: "a.deco", Attr: "href"}},
			Author: []sources.Rule{{Selector: "td.writer a"}},
		},
	}

	recs := NewStatic(site, "ua", srv.Client(), logger.NewNop()).Fetch(context.Background())
	require.Len(t, recs, 2)

	assert.Equal(t, "닌텐도 스위치", recs[0].Title)
	assert.Equal(t, "298,000원", recs[0].Price)
	assert.Equal(t, "루리", recs[0].Author)
	assert.Equal(t, srv.URL+"/img/switch.jpg", recs[0].Thumbnail)

	assert.Equal(t, "에어팟 프로", recs[1].Title)
	assert.Equal(t, domain.ShippingFree, recs[1].Shipping)
	assert.Empty(t, recs[1].Thumbnail)
}

func TestBuildSkipsDynamicWithoutRenderer(t *testing.T) {
	file, err := sources.NewLoader("").Load()
	require.NoError(t, err)

	adapters := Build(file, nil, nil, logger.NewNop())
	require.Len(t, adapters, 3)
	for _, a := range adapters {
		assert.Equal(t, sources.KindStatic, a.Kind())
	}

	adapters = Build(file, nil, &fakeRenderer{}, logger.NewNop())
	assert.Len(t, adapters, 5)
}
