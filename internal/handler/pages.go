package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// Pages serves the marketing and auth pages straight from the static
// directory. The site owns routing only; page content is plain files.
type Pages struct {
	dir string
}

func NewPages(staticDir string) *Pages {
	return &Pages{dir: staticDir}
}

// pageRoutes maps every public path (including the .html aliases the old
// site answered to) onto its file.
var pageRoutes = map[string][]string{
	"index.html":            {"/"},
	"about.html":            {"/about", "/about.html"},
	"writers.html":          {"/mentors", "/writers.html"},
	"faq.html":              {"/faq", "/faq.html"},
	"loci.html":             {"/loci", "/loci.html"},
	"appeals.html":          {"/appeals", "/appeals.html"},
	"login.html":            {"/login", "/login.html"},
	"signup.html":           {"/signup", "/signup.html"},
	"confirm.html":          {"/confirm", "/confirm.html"},
	"logout.html":           {"/logout-page", "/logout.html"},
	"protected-course.html": {"/protected-course", "/protected-course.html"},
	"styles.css":            {"/styles.css"},
	"script.js":             {"/script.js"},
	"auth.js":               {"/auth.js"},
}

func (p *Pages) Register(r gin.IRouter) {
	for file, paths := range pageRoutes {
		handler := p.File(file)
		for _, path := range paths {
			r.GET(path, handler)
		}
	}

	r.Static("/assets", filepath.Join(p.dir, "assets"))
}

func (p *Pages) File(name string) gin.HandlerFunc {
	full := filepath.Join(p.dir, name)
	return func(c *gin.Context) {
		c.File(full)
	}
}

// Course is the protected page; the session gate runs before it.
func (p *Pages) Course(c *gin.Context) {
	c.File(filepath.Join(p.dir, "protected-course.html"))
}
