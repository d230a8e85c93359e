// Package blog registers the checklist for the blog exercise: a Django
// project named "website" with a "blog" app, static files, template
// inheritance, and index/post views bound to "/" and "/post/".
//
// Importing the package for its side effects registers the rules:
//
//	import _ "github.com/leapstack-labs/blogcheck/pkg/check/blog"
package blog
