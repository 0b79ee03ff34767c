package fakeblog

import "html/template"

const layout = `{{define "banner"}}{{if .Banner}}
<div id="cookie-banner" role="dialog">
  <p>We use cookies to improve your experience.</p>
  <button type="button" onclick="document.getElementById('cookie-banner').remove()">Accept &amp; Close</button>
</div>{{end}}{{end}}`

func parse(name, body string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(layout)).Parse(body))
}

var homeTmpl = parse("home", `<!doctype html>
<html><head><title>SkillsVR Demo | Immersive Training</title></head>
<body>
{{template "banner" .}}
<nav>
  <a href="/marketplace">VR Training</a>
  <a href="/login" target="_blank">Sign In</a>
</nav>
<h1>Immersive training for every team</h1>
</body></html>`)

var marketplaceTmpl = parse("marketplace", `<!doctype html>
<html><head><title>Marketplace | SkillsVR Demo</title></head>
<body>
{{template "banner" .}}
<h1>VR Training Marketplace</h1>
<ul>
  <li><a href="/course/demo" target="_blank">DEMO Empowered Reality</a></li>
</ul>
</body></html>`)

var courseTmpl = parse("course", `<!doctype html>
<html><head><title>DEMO Empowered Reality | SkillsVR Demo</title></head>
<body>
<header>
  <div id="div_block-441-27102">
    <span class="menu-toggle">Resources</span>
    <div class="hosting-submenu">
      <div class="hosting-submenu-small-unit"><a href="/case-studies">Case Studies</a></div>
      <div class="hosting-submenu-small-unit"><a href="/blog">Blog</a></div>
    </div>
  </div>
</header>
<h1>DEMO Empowered Reality</h1>
</body></html>`)

var listingTmpl = parse("listing", `<!doctype html>
<html><head><title>Blog{{if gt .Page 1}} - Page {{.Page}}{{end}} | SkillsVR Demo</title></head>
<body>
{{template "banner" .}}
<h1>Keep up with all things VR training</h1>
<div id="_dynamic_list-199-247" class="oxy-dynamic-list">
{{- range .Posts}}
  <div data-id="div_block-202-247" class="ct-div-block">
    <h2 class="ct-headline"> {{.Title}} </h2>
    <span id="span-206-247-{{.Index}}" class="ct-span">Posted on {{.Date}} &middot; 5 min read</span>
  </div>
{{- end}}
</div>
<div class="oxy-repeater-pages">
{{- range .Links}}
  <a class="page-numbers" href="{{.Href}}">{{.Label}}</a>
{{- end}}
</div>
</body></html>`)

var loginTmpl = parse("login", `<!doctype html>
<html><head><title>Sign in | SkillsVR Demo</title></head>
<body>
<h1>Sign in</h1>
<form id="signin" onsubmit="return false">
  <input type="email" placeholder="Email Address" name="email">
  <input type="password" placeholder="Password" name="password">
  <div id="errors"></div>
  <button type="submit">Sign in</button>
</form>
<script>
  document.getElementById('signin').addEventListener('submit', function () {
    var email = this.email.value.trim();
    var password = this.password.value;
    var errors = document.getElementById('errors');
    errors.innerHTML = '';
    var show = function (msg) {
      var p = document.createElement('p');
      p.className = 'error';
      p.textContent = msg;
      errors.appendChild(p);
    };
    if (!email) show('Please enter your Email');
    if (!password) show('Please enter your password');
    if (!email || !password) return;
    if (!/^[^@\s]+@[^@\s]+\.[^@\s]+$/.test(email)) {
      show('Please enter a valid email');
      return;
    }
    setTimeout(function () { show('Email or password is invalid.'); }, 300);
  });
</script>
</body></html>`)
