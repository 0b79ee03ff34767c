// Package domscript holds the in-page element resolver shared by the
// JavaScript-capable browser drivers.
package domscript

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/user/pagecheck-service/internal/repository"
)

// MarkAttr is set on the element a resolver call found so that follow-up
// actions can address it with a plain CSS selector.
const MarkAttr = "data-pagecheck-target"

var roleSelectors = map[string]string{
	"link":     `a[href], [role="link"]`,
	"button":   `button, input[type="button"], input[type="submit"], [role="button"]`,
	"heading":  `h1, h2, h3, h4, h5, h6, [role="heading"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="email"], textarea, [role="textbox"]`,
	"checkbox": `input[type="checkbox"], [role="checkbox"]`,
}

// RoleSelector returns the CSS selector of the elements carrying an implicit
// or explicit ARIA role.
func RoleSelector(role string) string {
	if sel, ok := roleSelectors[role]; ok {
		return sel
	}
	return fmt.Sprintf(`[role=%q]`, role)
}

var spaces = regexp.MustCompile(`\s+`)

// NormalizeSpace collapses whitespace runs and trims.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// MarkSelector addresses the element marked by a resolver call.
func MarkSelector(mark string) string {
	return fmt.Sprintf(`[%s=%q]`, MarkAttr, mark)
}

// Args builds the single argument passed to Resolve.
func Args(loc repository.Locator, mark string) map[string]any {
	args := map[string]any{
		"kind":    string(loc.Kind),
		"value":   loc.Value,
		"name":    NormalizeSpace(loc.Name),
		"within":  loc.Within,
		"hasText": strings.ToLower(NormalizeSpace(loc.HasText)),
		"attr":    MarkAttr,
		"mark":    mark,
	}
	if loc.Kind == repository.ByRole {
		args["selector"] = RoleSelector(loc.Value)
	}
	return args
}

// Resolve is a polling predicate. It returns true once an element matching
// the locator is visible, after tagging it with MarkAttr.
const Resolve = `function(q) {
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
  const visible = (el) => {
    const style = window.getComputedStyle(el);
    if (style.visibility === 'hidden' || style.display === 'none') return false;
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };
  const accessibleName = (el) => norm(el.getAttribute('aria-label') || el.innerText || el.value || el.textContent);

  let scope = document;
  if (q.within) {
    scope = document.querySelector(q.within);
    if (!scope) return false;
  }

  let candidates = [];
  if (q.kind === 'css') {
    candidates = Array.from(scope.querySelectorAll(q.value));
  } else if (q.kind === 'role') {
    candidates = Array.from(scope.querySelectorAll(q.selector)).filter((el) => accessibleName(el) === q.name);
  } else if (q.kind === 'text') {
    const needle = norm(q.value).toLowerCase();
    const all = Array.from(scope.querySelectorAll('*')).filter((el) =>
      el.tagName !== 'SCRIPT' && el.tagName !== 'STYLE' && norm(el.textContent).toLowerCase().includes(needle));
    candidates = all.filter((el) => !Array.from(el.children).some((c) => norm(c.textContent).toLowerCase().includes(needle)));
  }
  if (q.hasText) {
    candidates = candidates.filter((el) => norm(el.textContent).toLowerCase().includes(q.hasText));
  }

  const found = candidates.find(visible);
  if (!found) return false;
  document.querySelectorAll('[' + q.attr + ']').forEach((el) => el.removeAttribute(q.attr));
  found.setAttribute(q.attr, q.mark);
  return true;
}`
