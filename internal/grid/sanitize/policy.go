package sanitize

func set(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

var (
	common = []string{"class", "style"}

	allowedTags = map[string]map[string]struct{}{
		"a":          set("href", "title", "target", "rel", "class"),
		"abbr":       set("title", "class"),
		"b":          set(common...),
		"blockquote": set(common...),
		"br":         set(),
		"caption":    set(common...),
		"code":       set(common...),
		"dd":         set(common...),
		"div":        set(common...),
		"dl":         set(common...),
		"dt":         set(common...),
		"em":         set(common...),
		"h1":         set(common...),
		"h2":         set(common...),
		"h3":         set(common...),
		"h4":         set(common...),
		"h5":         set(common...),
		"h6":         set(common...),
		"hr":         set(common...),
		"i":          set(common...),
		"li":         set(common...),
		"mark":       set(common...),
		"ol":         set("class", "style", "start"),
		"p":          set(common...),
		"pre":        set(common...),
		"s":          set(common...),
		"small":      set(common...),
		"span":       set(common...),
		"strong":     set(common...),
		"sub":        set(common...),
		"sup":        set(common...),
		"table":      set(common...),
		"tbody":      set(common...),
		"td":         set("class", "style", "colspan", "rowspan"),
		"tfoot":      set(common...),
		"th":         set("class", "style", "colspan", "rowspan", "scope"),
		"thead":      set(common...),
		"tr":         set(common...),
		"u":          set(common...),
		"ul":         set(common...),
	}

	// Elements removed together with everything inside them.
	dropContent = set(
		"script", "style", "iframe", "frame", "frameset", "object", "embed", "applet",
		"template", "noscript", "noembed", "noframes", "textarea", "select", "option",
		"svg", "math", "title", "head", "xmp", "plaintext", "form", "button", "video",
		"audio", "canvas", "link", "meta", "base", "input", "img", "source", "track",
	)

	voidElements = map[string]bool{
		"br": true, "hr": true, "img": true, "input": true, "link": true, "meta": true,
		"base": true, "source": true, "track": true, "embed": true, "area": true, "col": true, "wbr": true,
	}
)
