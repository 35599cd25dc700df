package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// NoLink 链接清单里没有对应文件时使用
const NoLink = "No link available"

// Links 文件名 → 原始文档链接
type Links map[string]string

// Lookup 返回文件对应的链接，没有时返回 NoLink
func (l Links) Lookup(fileName string) string {
	if link, ok := l[fileName]; ok && link != "" {
		return link
	}
	return NoLink
}

type linkEntry struct {
	FileName string `yaml:"file_name"`
	Link     string `yaml:"link"`
}

// LoadLinks 按扩展名读取链接清单：.csv / .yaml / .yml / .html / .htm
func LoadLinks(file string) (Links, error) {
	if file == "" {
		return Links{}, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open links file: %w", err)
	}
	defer f.Close()

	var links Links
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".csv":
		links, err = parseCSVLinks(f)
	case ".yaml", ".yml":
		links, err = parseYAMLLinks(f)
	case ".html", ".htm":
		links, err = parseHTMLLinks(f)
	default:
		return nil, fmt.Errorf("unsupported links file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse links file %s: %w", file, err)
	}
	return links, nil
}

// parseCSVLinks 表头需包含 file_name 和 link 两列
func parseCSVLinks(r io.Reader) (Links, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nameCol, linkCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "file_name":
			nameCol = i
		case "link":
			linkCol = i
		}
	}
	if nameCol < 0 || linkCol < 0 {
		return nil, errors.New("header must contain file_name and link")
	}

	links := Links{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if nameCol >= len(rec) || linkCol >= len(rec) {
			continue
		}
		if name := strings.TrimSpace(rec[nameCol]); name != "" {
			links[name] = strings.TrimSpace(rec[linkCol])
		}
	}
	return links, nil
}

// parseYAMLLinks 支持两种写法：
//
//	handbook.pdf: https://example.com/handbook
//
// 或
//
//	- file_name: handbook.pdf
//	  link: https://example.com/handbook
func parseYAMLLinks(r io.Reader) (Links, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return Links{}, nil
		}
		return nil, err
	}
	if len(root.Content) == 0 {
		return Links{}, nil
	}

	links := Links{}
	switch node := root.Content[0]; node.Kind {
	case yaml.MappingNode:
		if err := node.Decode(&links); err != nil {
			return nil, err
		}
	case yaml.SequenceNode:
		var entries []linkEntry
		if err := node.Decode(&entries); err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.FileName != "" {
				links[e.FileName] = e.Link
			}
		}
	default:
		return nil, fmt.Errorf("line %d: expected a mapping or a list", node.Line)
	}
	return links, nil
}

// parseHTMLLinks 从文档索引页的 <a> 标签提取链接。
// 文件名优先取 data-file 属性，其次是以 .pdf 结尾的锚文本，最后是 href 的文件名部分。
func parseHTMLLinks(r io.Reader) (Links, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	links := Links{}
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}

		name := strings.TrimSpace(s.AttrOr("data-file", ""))
		if name == "" {
			if text := strings.TrimSpace(s.Text()); isPDF(text) {
				name = text
			}
		}
		if name == "" {
			name = hrefFileName(href)
		}
		if !isPDF(name) {
			return
		}
		if _, seen := links[name]; !seen {
			links[name] = href
		}
	})
	return links, nil
}

func hrefFileName(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func isPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
