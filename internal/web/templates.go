package web

// pageTemplates keeps the dashboard self-contained; no template files
// to ship next to the binary.
const pageTemplates = `
{{define "login"}}<!DOCTYPE html>
<html><head><title>pdfsqueeze — login</title></head><body>
<h2>pdfsqueeze</h2>
{{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
<form method="post" action="/web/login">
  <label>Username <input name="username"></label><br>
  <label>Password <input type="password" name="password"></label><br>
  <button type="submit">Log in</button>
</form>
</body></html>{{end}}

{{define "dashboard"}}<!DOCTYPE html>
<html><head><title>pdfsqueeze — dashboard</title></head><body>
<h2>pdfsqueeze</h2>
<p>Logged in as {{.Username}} — <a href="/web/logout">log out</a></p>

{{with .Health}}
<h3>Health</h3>
<ul>
  <li>redis: {{.Redis.OK}} {{.Redis.Message}}</li>
  <li>s3: {{.S3.OK}} {{.S3.Message}}</li>
  <li>libreoffice: {{.LibreOffice.OK}} {{.LibreOffice.Message}}</li>
  <li>result dir: {{.ResultDir.OK}} {{.ResultDir.Message}}</li>
</ul>
{{end}}

<h3>Queue</h3>
<p>ready: {{.Ready}} &middot; delayed: {{.Delayed}} &middot; dlq: {{.DLQ}}</p>

<h3>Compress by path or URL</h3>
<form method="post" action="/web/submit">
  <label>File path / URL <input name="file_path" size="60"></label><br>
  <label>Target size <input name="target_size" value="2MB"></label>
  <label>Tolerance
    <select name="tolerance">
      <option value="balanced">balanced</option>
      <option value="strict">strict</option>
      <option value="high_clarity">high_clarity</option>
    </select>
  </label><br>
  <label><input type="checkbox" name="extract_text"> extract text</label>
  <label><input type="checkbox" name="remove_text"> remove text</label><br>
  <button type="submit">Submit</button>
</form>

<h3>Compress upload</h3>
<form method="post" action="/web/upload" enctype="multipart/form-data">
  <input type="file" name="file"><br>
  <label>Target size <input name="target_size" value="2MB"></label>
  <label>Tolerance
    <select name="tolerance">
      <option value="balanced">balanced</option>
      <option value="strict">strict</option>
      <option value="high_clarity">high_clarity</option>
    </select>
  </label><br>
  <button type="submit">Upload</button>
</form>
</body></html>{{end}}
`
