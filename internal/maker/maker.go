// Package maker writes sample documents and frontmatter templates into a
// docs directory.
package maker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vonshlovens/docsync/internal/model"
	"github.com/vonshlovens/docsync/internal/sync"
)

// Template file names. Both are in the default ignore patterns.
const (
	PostTemplate = "文章模板.md"
	PageTemplate = "页面模板.md"
)

// ErrExists is returned when example would write into an existing docs path
var ErrExists = errors.New("docs path already exists")

// Default field values carried by generated documents
const (
	defaultExcerpt = "随便写点什么当摘要..."
	defaultIcon    = "czs-block-l"
	defaultOrder   = 100
)

// DefaultPost returns a post carrying the template field values
func DefaultPost(title, category string) *model.Post {
	return &model.Post{Title: title, Category: category, Excerpt: defaultExcerpt}
}

// DefaultPage returns a page carrying the template field values
func DefaultPage(title string) *model.Page {
	return &model.Page{Title: title, Icon: defaultIcon, IsActive: true, Order: defaultOrder}
}

// Example creates root with two pages and two posts in two categories. It
// refuses to touch a root that already exists.
func Example(root string) ([]string, error) {
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, root)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to check docs path: %w", err)
	}

	var written []string
	for _, page := range samplePages() {
		path, err := sync.WritePage(root, page)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	for _, post := range samplePosts() {
		path, err := sync.WritePost(root, post)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// Templates writes the post and page templates into root. Existing
// templates are kept; the returned slice holds the files written.
func Templates(root string) ([]string, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create docs path: %w", err)
	}

	var written []string
	for name, meta := range map[string]any{
		PostTemplate: DefaultPost("", "").Metadata(),
		PageTemplate: DefaultPage("").Metadata(),
	} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeTemplate(path, meta); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func samplePages() []*model.Page {
	about := DefaultPage("关于")
	about.Content = "## 关于博客\n\n这是我的个人博客，分享技术文章和生活感悟。\n\n### 博客特点\n\n- 技术文章分享\n- 学习笔记记录\n- 项目经验总结\n\n欢迎交流讨论！\n"

	links := DefaultPage("友链")
	links.Content = "# 友情链接\n\n## 优秀博客推荐\n\n- [TechStack](https://techstack.example.com) - 专注于全栈开发技术分享\n- [算法之美](https://algo.example.com) - 算法学习与竞赛经验\n\n## 友链交换说明\n\n1. **内容质量**：网站内容原创度高，有价值且定期更新\n2. **网站稳定**：网站可正常访问，无大量广告或弹窗\n"

	return []*model.Page{about, links}
}

func samplePosts() []*model.Post {
	cli := DefaultPost("关于cli的其相关说明", "测试")
	cli.Content = "# CLI 工具使用说明\n\n## 功能概述\n\n这是一个用于博客管理的命令行工具，支持文章的发布、更新和同步。\n\n### 主要命令\n\n```bash\ndocsync push      # 推送本地文章\ndocsync pull      # 拉取远程文章\ndocsync backup    # 备份数据\n```\n\n### 配置说明\n\n工具使用 YAML 配置文件，支持自定义服务器地址和 API 密钥。\n"

	todo := DefaultPost("笔记的名字可以随意", "笔记")
	todo.Content = "# 任务清单\n\n## 待办事项\n- [ ] 编写项目文档\n- [ ] 代码审查\n\n## 已完成\n- [x] 项目需求分析\n- [x] 技术选型\n\n---\n**进度**：2/4 已完成\n"

	return []*model.Post{cli, todo}
}

func writeTemplate(path string, meta any) error {
	content, err := sync.FormatDocument(meta, "\n")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}
