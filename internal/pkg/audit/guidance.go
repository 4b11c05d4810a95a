package audit

import (
	"fmt"
	"strings"
)

// WCAG principles.
const (
	PrinciplePerceivable    = "Perceivable"
	PrincipleOperable       = "Operable"
	PrincipleUnderstandable = "Understandable"
	PrincipleRobust         = "Robust"
	PrincipleUnknown        = "Undetermined"
)

// Guidance is the curated human-readable explanation for one rule.
type Guidance struct {
	Title          string
	Description    string
	Recommendation string
	WCAG           string
	Principle      string
}

var guidanceByRule = map[string]Guidance{
	"color-contrast": {
		Title:          "Insufficient text contrast",
		Description:    "Text and its background do not have enough contrast.",
		Recommendation: "Adjust text or background colors so contrast reaches at least 4.5:1 for regular text.",
		WCAG:           "1.4.3 Contrast (Minimum)",
		Principle:      PrinciplePerceivable,
	},
	"heading-order": {
		Title:          "Headings skip levels",
		Description:    "Heading levels jump around, which makes the page harder to navigate.",
		Recommendation: "Use a heading hierarchy without skipped levels (e.g. h2 followed by h3).",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"page-has-main": {
		Title:          "Page has no main content area",
		Description:    "The page lacks a main landmark that helps users and screen readers orient.",
		Recommendation: "Wrap the primary content in a <main> element.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"region": {
		Title:          "Content outside landmark regions",
		Description:    "Some content sits outside the page's landmark regions.",
		Recommendation: "Place content inside landmarks like <main>, <header>, <nav>, <footer>, or add aria-label.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"image-alt": {
		Title:          "Image missing alternative text",
		Description:    "An image without alt text is meaningless to screen readers.",
		Recommendation: "Add descriptive alt text to every informative image.",
		WCAG:           "1.1.1 Non-text Content",
		Principle:      PrinciplePerceivable,
	},
	"label": {
		Title:          "Form field missing a label",
		Description:    "Users may not know what to enter into the field.",
		Recommendation: "Associate a label with every field (for + id).",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"link-name": {
		Title:          "Link has no discernible name",
		Description:    "The link text does not make its destination clear.",
		Recommendation: "Give every link meaningful text or an aria-label.",
		WCAG:           "2.4.4 Link Purpose (In Context)",
		Principle:      PrincipleOperable,
	},
	"button-name": {
		Title:          "Button has no discernible name",
		Description:    "It is unclear what the button does when pressed.",
		Recommendation: "Give every button text or an aria-label explaining its function.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"duplicate-id": {
		Title:          "Duplicate id in HTML",
		Description:    "The same id is used more than once.",
		Recommendation: "Make every id on the page unique.",
		WCAG:           "4.1.1 Parsing",
		Principle:      PrincipleRobust,
	},
	"html-has-lang": {
		Title:          "Page language missing",
		Description:    "Browsers and screen readers cannot determine the content language.",
		Recommendation: "Add a lang attribute to the html element (e.g. <html lang=\"en\">).",
		WCAG:           "3.1.1 Language of Page",
		Principle:      PrincipleUnderstandable,
	},
	"html-lang-valid": {
		Title:          "Invalid page language value",
		Description:    "The lang attribute has an invalid or incomplete language code.",
		Recommendation: "Use a valid language code (e.g. en, de).",
		WCAG:           "3.1.1 Language of Page",
		Principle:      PrincipleUnderstandable,
	},
	"document-title": {
		Title:          "Page title missing",
		Description:    "The page has no meaningful <title>.",
		Recommendation: "Add a meaningful page title via the <title> element in <head>.",
		WCAG:           "2.4.2 Page Titled",
		Principle:      PrincipleOperable,
	},
	"meta-viewport": {
		Title:          "Viewport meta prevents zoom",
		Description:    "The page may not render or scale properly on mobile devices.",
		Recommendation: "Add <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"> and do not disable zoom.",
		WCAG:           "1.4.10 Reflow",
		Principle:      PrinciplePerceivable,
	},
	"aria-allowed-attr": {
		Title:          "Disallowed ARIA attributes",
		Description:    "The element carries ARIA attributes that are not allowed for it.",
		Recommendation: "Remove or correct aria-* attributes according to the element's role.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-required-attr": {
		Title:          "Required ARIA attributes missing",
		Description:    "The role in use requires attributes that are not present.",
		Recommendation: "Add the required aria-* attributes for the role.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-valid-attr": {
		Title:          "Invalid ARIA attributes",
		Description:    "An aria-* attribute is invalid or misspelled.",
		Recommendation: "Use only valid ARIA attributes.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-valid-attr-value": {
		Title:          "Invalid ARIA attribute value",
		Description:    "An aria-* attribute value is not in an allowed format.",
		Recommendation: "Check and fix the values of ARIA attributes.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-roles": {
		Title:          "Invalid ARIA role",
		Description:    "The element has a nonexistent or incorrect role.",
		Recommendation: "Use only valid ARIA roles.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-allowed-role": {
		Title:          "Role not allowed on element",
		Description:    "This role is not permitted on the element in question.",
		Recommendation: "Use a role that is allowed for the element.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-required-children": {
		Title:          "ARIA role requires specific children",
		Description:    "The role in use requires particular child elements.",
		Recommendation: "Add the required nested elements for the role.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-required-parent": {
		Title:          "ARIA role requires a specific parent",
		Description:    "The role may only be used inside a particular parent element.",
		Recommendation: "Place the element inside an allowed parent for the role.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-hidden-body": {
		Title:          "Content hidden from assistive technology",
		Description:    "An aria-hidden attribute hides important content.",
		Recommendation: "Never apply aria-hidden=\"true\" to body or primary content.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"aria-unsupported-elements": {
		Title:          "ARIA on an unsupported element",
		Description:    "The element does not support the ARIA attributes applied to it.",
		Recommendation: "Remove ARIA attributes from unsupported elements.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"input-button-name": {
		Title:          "Input button has no name",
		Description:    "A button or submit input has no discernible text.",
		Recommendation: "Set the value attribute or use an aria-label.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"label-title-only": {
		Title:          "Field labeled only via title attribute",
		Description:    "A title attribute alone is not a sufficient field label.",
		Recommendation: "Use a visible label or aria-label.",
		WCAG:           "3.3.2 Labels or Instructions",
		Principle:      PrincipleUnderstandable,
	},
	"form-field-multiple-labels": {
		Title:          "Field has multiple labels",
		Description:    "One field is associated with more than one label.",
		Recommendation: "Keep exactly one unambiguous label per field.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"duplicate-id-aria": {
		Title:          "Duplicate id referenced by ARIA",
		Description:    "ARIA attributes reference ids that are not unique.",
		Recommendation: "Ensure unique ids for aria-labelledby and aria-describedby targets.",
		WCAG:           "4.1.1 Parsing",
		Principle:      PrincipleRobust,
	},
	"focus-order-semantics": {
		Title:          "Illogical focus order",
		Description:    "Keyboard focus moves through the page in an illogical order.",
		Recommendation: "Reorder elements or adjust tabindex so focus flows naturally.",
		WCAG:           "2.4.3 Focus Order",
		Principle:      PrincipleOperable,
	},
	"tabindex": {
		Title:          "Problematic tabindex",
		Description:    "Positive tabindex values usually degrade keyboard navigation.",
		Recommendation: "Rely on natural document order, or use tabindex 0 or -1.",
		WCAG:           "2.4.3 Focus Order",
		Principle:      PrincipleOperable,
	},
	"bypass": {
		Title:          "No way to skip repeated blocks",
		Description:    "Keyboard users must repeatedly tab through navigation.",
		Recommendation: "Add a skip-to-content link or a similar mechanism.",
		WCAG:           "2.4.1 Bypass Blocks",
		Principle:      PrincipleOperable,
	},
	"accesskeys": {
		Title:          "Accesskey shortcuts may conflict",
		Description:    "The accesskey attribute can collide with browser and assistive technology shortcuts.",
		Recommendation: "Avoid accesskey, or verify it does not conflict with common shortcuts.",
		WCAG:           "2.1.4 Character Key Shortcuts",
		Principle:      PrincipleOperable,
	},
	"landmark-one-main": {
		Title:          "Multiple main landmarks",
		Description:    "The page contains more than one main region.",
		Recommendation: "Keep exactly one <main> element per page.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"landmark-unique": {
		Title:          "Landmarks are not distinguishable",
		Description:    "Multiple landmarks of the same kind are not told apart.",
		Recommendation: "Distinguish repeated landmarks with aria-label or aria-labelledby.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"list": {
		Title:          "Malformed list structure",
		Description:    "A list contains invalid children or is assembled incorrectly.",
		Recommendation: "Use correct structure: ul/ol containing li elements.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"listitem": {
		Title:          "List item outside a list",
		Description:    "A list item sits outside any ul or ol.",
		Recommendation: "Place list items inside a proper ul or ol list.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"frame-title": {
		Title:          "Iframe has no title",
		Description:    "An iframe without a title is opaque to screen readers.",
		Recommendation: "Give every iframe a meaningful title attribute.",
		WCAG:           "4.1.2 Name, Role, Value",
		Principle:      PrincipleRobust,
	},
	"image-redundant-alt": {
		Title:          "Redundant image alt text",
		Description:    "The alt text is needlessly long or contains words that add no value.",
		Recommendation: "Use concise alt text that captures the essence of the image.",
		WCAG:           "1.1.1 Non-text Content",
		Principle:      PrinciplePerceivable,
	},
	"empty-heading": {
		Title:          "Empty heading",
		Description:    "A heading without text disrupts the content structure.",
		Recommendation: "Remove the empty heading or add text.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"empty-table-header": {
		Title:          "Empty table header",
		Description:    "A table header cell contains no text.",
		Recommendation: "Add text to table header cells (th).",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"table-duplicate-name": {
		Title:          "Ambiguous table names",
		Description:    "Table names or headers are not unambiguous.",
		Recommendation: "Use clear, unique table names and headers.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"td-headers-attr": {
		Title:          "Table cells not linked to headers",
		Description:    "Data cells are not properly associated with their headers.",
		Recommendation: "Use scope or headers/id associations.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"th-has-data-cells": {
		Title:          "Table header describes no data",
		Description:    "A th element is not used in a way that describes data cells.",
		Recommendation: "Review the relationship between th elements and their data cells.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"scope-attr-valid": {
		Title:          "Invalid scope value in table",
		Description:    "The scope attribute has an invalid value.",
		Recommendation: "Use allowed scope values: col, row, colgroup, rowgroup.",
		WCAG:           "1.3.1 Info and Relationships",
		Principle:      PrinciplePerceivable,
	},
	"video-caption": {
		Title:          "Video without captions",
		Description:    "Video with spoken content needs captions.",
		Recommendation: "Add captions to the video.",
		WCAG:           "1.2.2 Captions (Prerecorded)",
		Principle:      PrinciplePerceivable,
	},
	"audio-caption": {
		Title:          "Audio without a transcript",
		Description:    "Audio content needs a text transcript or captions.",
		Recommendation: "Provide a transcript or captions for the audio.",
		WCAG:           "1.2.1 Audio-only and Video-only (Prerecorded)",
		Principle:      PrinciplePerceivable,
	},
	"object-alt": {
		Title:          "Embedded object without text alternative",
		Description:    "An embedded object has no text alternative.",
		Recommendation: "Provide alternative text for object/embed elements.",
		WCAG:           "1.1.1 Non-text Content",
		Principle:      PrinciplePerceivable,
	},
	"autocomplete-valid": {
		Title:          "Invalid autocomplete value",
		Description:    "Form fields do not carry a valid autocomplete attribute value.",
		Recommendation: "Use valid autocomplete values matching the field's purpose.",
		WCAG:           "1.3.5 Identify Input Purpose",
		Principle:      PrinciplePerceivable,
	},
}

// Rules whose success criterion sits at level AA. Everything else in the
// catalog is level A.
var wcagLevelAA = map[string]struct{}{
	"color-contrast":     {},
	"meta-viewport":      {},
	"autocomplete-valid": {},
}

// GuidanceFor returns curated guidance for a rule, falling back to generic
// text that points the reader at the engine's own description.
func GuidanceFor(ruleID, description, help string) Guidance {
	if g, ok := guidanceByRule[ruleID]; ok {
		return g
	}

	g := Guidance{
		Title:          "Unknown accessibility issue",
		Description:    "This issue type has no curated description yet.",
		Recommendation: "Review this issue manually and adjust the HTML to satisfy WCAG.",
		WCAG:           "Undetermined",
		Principle:      PrincipleUnknown,
	}
	if ruleID != "" {
		g.Title = fmt.Sprintf("Unknown accessibility issue (%s)", ruleID)
	}
	if description != "" || help != "" {
		g.Description = "This issue type has no curated description yet, see the recommendation below."
		g.Recommendation = "Review this issue manually and adjust the HTML to satisfy WCAG (see the technical description above)."
	}
	return g
}

// WCAGLevelFor returns the conformance level of a rule's success criterion.
func WCAGLevelFor(ruleID, wcag string) string {
	if _, ok := wcagLevelAA[ruleID]; ok {
		return "AA"
	}
	if _, ok := guidanceByRule[ruleID]; ok {
		return "A"
	}
	if strings.Contains(wcag, "1.4.3") || strings.Contains(wcag, "1.4.10") {
		return "AA"
	}
	return "Undetermined"
}
