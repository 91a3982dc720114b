package subshare

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	readBufferSize = 64 * 1024
	recordTag      = "subs"
)

var rawNeedle = []byte("<" + recordTag)

// loadResult 一次加载的产物与统计
type loadResult struct {
	snap             *snapshot
	subsElementCount int
	parsedCount      int
	rawTagCount      int
	usedFallback     bool
}

// loadCorpus 流式解析 db.xml，同时统计原始 <subs 标签数。
// 若原始标签数 > 1 而解析结果 <= 1 (或流式解析失败)，再尝试整份文档解析，
// 仅当整份解析得到更多记录时采用其结果。
func loadCorpus(ctx context.Context, fs afero.Fs, path string) (*loadResult, error) {
	var (
		raw       int
		primary   *snapshot
		elements  int
		streamErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := countRawTags(gctx, fs, path)
		if err != nil {
			return err
		}
		raw = n
		return nil
	})
	g.Go(func() error {
		f, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		primary, elements, streamErr = streamParse(gctx, f)
		// 解析错误交给 fallback 处理，只有取消需要中断另一路
		if isCanceled(streamErr) {
			return streamErr
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &loadResult{rawTagCount: raw}
	if streamErr == nil {
		res.snap = primary
		res.subsElementCount = elements
		res.parsedCount = primary.len()
	}

	needFallback := streamErr != nil || (raw > 1 && res.parsedCount <= 1)
	if !needFallback {
		return res, nil
	}

	fallback, fbErr := parseDocumentFile(ctx, fs, path)
	if isCanceled(fbErr) {
		return nil, fbErr
	}
	if fbErr == nil && fallback.len() > res.parsedCount {
		res.snap = fallback
		res.subsElementCount = fallback.len()
		res.parsedCount = fallback.len()
		res.usedFallback = true
		return res, nil
	}

	if streamErr != nil {
		if fbErr != nil {
			return nil, fmt.Errorf("stream parse: %v; document parse: %w", streamErr, fbErr)
		}
		return nil, fmt.Errorf("stream parse: %w", streamErr)
	}
	return res, nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// streamParse 逐个 <subs> 元素读取，不把整份文档放进内存
func streamParse(ctx context.Context, r io.Reader) (*snapshot, int, error) {
	dec := xml.NewDecoder(bufio.NewReaderSize(r, readBufferSize))
	dec.CharsetReader = passthroughCharset

	builder := newIndexBuilder(4096)
	elements := 0

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, recordTag) {
			continue
		}

		elements++
		rec, err := readRecord(dec, start)
		if err != nil {
			return nil, 0, err
		}
		builder.add(rec)
	}

	return builder.build(), elements, nil
}

// readRecord 读取一个 <subs> 元素：属性在前，子元素覆盖同名属性
func readRecord(dec *xml.Decoder, start xml.StartElement) (Record, error) {
	var rec Record
	for _, attr := range start.Attr {
		rec.set(attr.Name.Local, attr.Value)
	}

	depth := 1
	var (
		field string
		text  strings.Builder
	)
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return rec, io.ErrUnexpectedEOF
			}
			return rec, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth >= 2 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 && field != "" {
				rec.set(field, text.String())
				field = ""
			}
			depth--
		}
	}
	return rec, nil
}

// xmlNode 整份文档解析用的通用节点
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func parseDocumentFile(ctx context.Context, fs afero.Fs, path string) (*snapshot, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseDocument(ctx, f)
}

// parseDocument 整份读入后只取根元素下名为 subs 的直接子元素
func parseDocument(ctx context.Context, r io.Reader) (*snapshot, error) {
	dec := xml.NewDecoder(bufio.NewReaderSize(r, readBufferSize))
	dec.CharsetReader = passthroughCharset

	var root xmlNode
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}

	builder := newIndexBuilder(len(root.Nodes))
	for i, node := range root.Nodes {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if node.XMLName.Local != recordTag {
			continue
		}

		var rec Record
		for _, attr := range node.Attrs {
			rec.set(attr.Name.Local, attr.Value)
		}
		for _, child := range node.Nodes {
			rec.set(child.XMLName.Local, child.Text)
		}
		builder.add(rec)
	}
	return builder.build(), nil
}

// countRawTags 分块不区分大小写地统计 "<subs" 出现次数。
// 块之间保留 len(needle)-1 字节，跨块的标签只会被计一次。
func countRawTags(ctx context.Context, fs afero.Fs, path string) (int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return countTags(ctx, f, rawNeedle)
}

func countTags(ctx context.Context, r io.Reader, needle []byte) (int, error) {
	keep := len(needle) - 1
	buf := make([]byte, readBufferSize+keep)
	carry := 0
	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, err := r.Read(buf[carry:])
		if n > 0 {
			chunk := buf[:carry+n]
			count += bytes.Count(bytes.ToLower(chunk), needle)

			tail := min(keep, len(chunk))
			copy(buf, chunk[len(chunk)-tail:])
			carry = tail
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return count, nil
}

// passthroughCharset 声明为其他编码时按原字节读取 (db.xml 实际为 UTF-8)
func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}
