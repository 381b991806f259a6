package convert

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// imageSectionHeading opens the trailing figure section appended by the fast
// strategy. Its presence also guards a second append pass.
const imageSectionHeading = "## 文档图像"

// ImageAPIPath builds the public path an HTTP layer serves the figure from.
func ImageAPIPath(apiPrefix, docID, filename string) string {
	return fmt.Sprintf("%s/documents/%s/images/%s.png", strings.TrimRight(apiPrefix, "/"), docID, filename)
}

// AppendImageSection adds a trailing section linking every extracted figure,
// used when the OCR stage emits no inline image markers. Appending to
// already-appended markdown is a no-op, and so is an empty image list.
func AppendImageSection(markdown string, images []ImageRef, docID, apiPrefix string) string {
	if len(images) == 0 {
		return markdown
	}
	if strings.HasPrefix(markdown, imageSectionHeading) || strings.Contains(markdown, "\n"+imageSectionHeading) {
		return markdown
	}

	var b strings.Builder
	b.WriteString(markdown)
	b.WriteString("\n\n")
	b.WriteString(imageSectionHeading)
	b.WriteString("\n\n")
	for i, ref := range images {
		fmt.Fprintf(&b, "**图 %d**: ![%s](%s)\n\n", i+1, ref.Filename, ImageAPIPath(apiPrefix, docID, ref.Filename))
	}
	return b.String()
}

// RewriteImageRefs replaces inline image embeds whose target is exactly a
// figure's SourceID (optionally prefixed ./, images/ or ./images/) with an
// embed pointing at the figure's public path. Embeds referencing ids that
// were never extracted are left byte-identical; that loss is intentional and
// logged. Rewritten output is stable under a second pass because the new
// targets no longer match any SourceID.
func RewriteImageRefs(markdown string, images []ImageRef, docID, apiPrefix string, log zerolog.Logger) string {
	for _, ref := range images {
		if ref.SourceID == "" {
			continue
		}
		pattern := regexp.MustCompile(`!\[[^\]]*\]\((?:\./)?(?:images/)?` + regexp.QuoteMeta(ref.SourceID) + `\)`)
		replacement := fmt.Sprintf("![%s](%s)", ref.Filename, ImageAPIPath(apiPrefix, docID, ref.Filename))

		rewritten := pattern.ReplaceAllString(markdown, replacement)
		if rewritten == markdown {
			log.Warn().Str("source_id", ref.SourceID).Str("image", ref.Filename).Msg("no inline reference found for extracted image")
		}
		markdown = rewritten
	}
	return markdown
}
