package documenso

import (
	"net/url"
	"strconv"
)

// TemplateAuthoringLink returns the embedded template-creation URL for a presign token.
func (c *Client) TemplateAuthoringLink(presignToken string) string {
	return c.baseURL + "/embed/v1/authoring/template/create?" + tokenQuery(presignToken)
}

// TemplateEditAuthoringLink returns the embedded template-edit URL for template id.
func (c *Client) TemplateEditAuthoringLink(id int64, presignToken string) string {
	return c.baseURL + "/embed/v1/authoring/template/edit/" + strconv.FormatInt(id, 10) + "?" + tokenQuery(presignToken)
}

func tokenQuery(tok string) string {
	return "token=" + url.QueryEscape(tok)
}
