package blog

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockImage     BlockType = "image"
	BlockList      BlockType = "list"
	BlockQuote     BlockType = "quote"
	BlockCode      BlockType = "code"
	BlockLink      BlockType = "link"
	BlockDivider   BlockType = "divider"
)

var blockTypes = []BlockType{
	BlockParagraph, BlockHeading, BlockImage, BlockList,
	BlockQuote, BlockCode, BlockLink, BlockDivider,
}

func (t BlockType) IsValid() bool {
	return slices.Contains(blockTypes, t)
}

type ListType string

const (
	ListOrdered   ListType = "ordered"
	ListUnordered ListType = "unordered"
)

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

const (
	DefaultCodeLanguage = "javascript"
	MinHeadingLevel     = 1
	MaxHeadingLevel     = 6
)

// ContentBlock is one structural unit of a post body.
// Which of the optional fields must be set depends on Type only, see requiredFields.
type ContentBlock struct {
	Type         BlockType `json:"type"`
	Content      string    `json:"content,omitempty"`
	Level        int       `json:"level,omitempty"`
	ImageURL     string    `json:"imageURL,omitempty"`
	ImageAlt     string    `json:"imageAlt,omitempty"`
	ImageCaption string    `json:"imageCaption,omitempty"`
	ListType     ListType  `json:"listType,omitempty"`
	ListItems    []string  `json:"listItems,omitempty"`
	LinkURL      string    `json:"linkURL,omitempty"`
	LinkText     string    `json:"linkText,omitempty"`
	Language     string    `json:"language,omitempty"`
	Alignment    Alignment `json:"alignment,omitempty"`
	Order        int       `json:"order"`
}

type blockField struct {
	name    string
	present func(b *ContentBlock) bool
}

var (
	contentField  = blockField{"content", func(b *ContentBlock) bool { return b.Content != "" }}
	levelField    = blockField{"level", func(b *ContentBlock) bool { return b.Level != 0 }}
	imageURLField = blockField{"imageURL", func(b *ContentBlock) bool { return b.ImageURL != "" }}
	listTypeField = blockField{"listType", func(b *ContentBlock) bool { return b.ListType != "" }}
	listItemsFld  = blockField{"listItems", func(b *ContentBlock) bool { return len(b.ListItems) > 0 }}
	linkURLField  = blockField{"linkURL", func(b *ContentBlock) bool { return b.LinkURL != "" }}
	linkTextField = blockField{"linkText", func(b *ContentBlock) bool { return b.LinkText != "" }}
)

// requiredFields is the per-type schema of a block.
func requiredFields(t BlockType) []blockField {
	switch t {
	case BlockParagraph, BlockQuote, BlockCode:
		return []blockField{contentField}
	case BlockHeading:
		return []blockField{contentField, levelField}
	case BlockImage:
		return []blockField{imageURLField}
	case BlockList:
		return []blockField{listTypeField, listItemsFld}
	case BlockLink:
		return []blockField{linkURLField, linkTextField}
	default:
		// divider
		return nil
	}
}

// normalize trims the text payload and fills per-type defaults.
func (b *ContentBlock) normalize() {
	b.Type = BlockType(strings.ToLower(strings.TrimSpace(string(b.Type))))
	b.Content = strings.TrimSpace(b.Content)
	b.ImageURL = strings.TrimSpace(b.ImageURL)
	b.ImageAlt = strings.TrimSpace(b.ImageAlt)
	b.ImageCaption = strings.TrimSpace(b.ImageCaption)
	b.LinkURL = strings.TrimSpace(b.LinkURL)
	b.LinkText = strings.TrimSpace(b.LinkText)
	b.Language = strings.TrimSpace(b.Language)

	if len(b.ListItems) > 0 {
		items := make([]string, 0, len(b.ListItems))
		for _, item := range b.ListItems {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		b.ListItems = items
	}

	if b.Alignment == "" {
		b.Alignment = AlignLeft
	}
	if b.Type == BlockCode && b.Language == "" {
		b.Language = DefaultCodeLanguage
	}
}

// isPlaceholder reports an editor leftover: a non-divider block without any payload.
func (b *ContentBlock) isPlaceholder() bool {
	if b.Type == BlockDivider {
		return false
	}
	return b.Content == "" &&
		b.Level == 0 &&
		b.ImageURL == "" &&
		b.ImageAlt == "" &&
		b.ImageCaption == "" &&
		b.ListType == "" &&
		len(b.ListItems) == 0 &&
		b.LinkURL == "" &&
		b.LinkText == ""
}

// Validate checks the block against its type schema. Field names are prefixed with
// the block position, e.g. "content[2].level".
func (b *ContentBlock) Validate(index int) (err error) {
	prefix := fmt.Sprintf("content[%d]", index)

	if !b.Type.IsValid() {
		return fieldErr(prefix+".type", "unknown block type %q", b.Type)
	}

	for _, f := range requiredFields(b.Type) {
		if !f.present(b) {
			err = multierr.Append(err, fieldErr(prefix+"."+f.name, "is required for %s blocks", b.Type))
		}
	}

	if b.Type == BlockHeading && b.Level != 0 && (b.Level < MinHeadingLevel || b.Level > MaxHeadingLevel) {
		err = multierr.Append(err, fieldErr(prefix+".level", "must be between %d and %d", MinHeadingLevel, MaxHeadingLevel))
	}
	if b.Type == BlockList && b.ListType != "" && b.ListType != ListOrdered && b.ListType != ListUnordered {
		err = multierr.Append(err, fieldErr(prefix+".listType", "must be %q or %q", ListOrdered, ListUnordered))
	}
	switch b.Alignment {
	case AlignLeft, AlignCenter, AlignRight:
	default:
		err = multierr.Append(err, fieldErr(prefix+".alignment", "must be one of left, center, right"))
	}

	return err
}

// prepareBlocks normalizes blocks, drops editor placeholders and orders the rest by
// their Order field. Ties keep the submitted order.
func prepareBlocks(blocks []ContentBlock) []ContentBlock {
	prepared := make([]ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		b.normalize()
		if b.isPlaceholder() {
			continue
		}
		prepared = append(prepared, b)
	}
	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].Order < prepared[j].Order
	})
	return prepared
}

func validateBlocks(blocks []ContentBlock) (err error) {
	for i := range blocks {
		err = multierr.Append(err, blocks[i].Validate(i))
	}
	return err
}
