/*
 * Copyright 2025 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

const indexTmpl string = `<html>
  <head>
    <title>Fleet Gateway</title>
    <style>
      .links, .build-info {
        display: flex;
      }
      h3, p {
        padding-right: 1em;
      }
    </style>
  </head>
  <body>
    <h1>Fleet Gateway</h1>
    <div class="build-info">
      <p><b>version:</b> {{ .Version }}</p>
      <p><b>revision:</b> {{ .Revision }}</p>
      <p><b>build date:</b> {{ .BuildDate }}</p>
    </div>
    <div class="links">
      <h3><a href="failed">Failed Events</a></h3>
      <h3><a href="metrics">Metrics</a></h3>
    </div>
  </body>
</html>
`

const failedTmpl string = `<html>
<head>
  <title>Fleet Gateway</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <meta http-equiv="refresh" content="60">
  <style>
    h1 {
      padding: 1rem;
    }
    h3 {
      padding-left: 1rem;
    }
    table {
      margin-left: 1rem;
      border-collapse: collapse;
    }
    th, td {
      border: 1px solid #ccc;
      padding: 0.25rem 1rem;
    }
  </style>
</head>
<body>
  <h1>Failed Events</h1>
  <h3><a href="../">Home</a></h3>
  <table>
    <tr><th>IMEI</th><th>Pending</th><th>Last Attempt (unix)</th></tr>
    {{range .}}
    <tr><td>{{ .IMEI }}</td><td>{{ .Pending }}</td><td>{{ .AttemptedAt }}</td></tr>
    {{end}}
  </table>
</body>
</html>
`
