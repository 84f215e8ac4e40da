package exec

// DefaultLanguage 是新房间的初始语言。
const DefaultLanguage = "javascript"

// Versions 是语言到沙箱 API 固定版本号的映射。
// 不在此表内 (也不由本地执行器处理) 的语言标识视为不支持。
var Versions = map[string]string{
	"javascript": "18.15.0",
	"typescript": "5.0.3",
	"python":     "3.10.0",
	"java":       "15.0.2",
	"csharp":     "6.12.0",
	"php":        "8.2.3",
	"sqlite3":    "3.36.0",
	"postgresql": "15.0",
}

// Snippets 是语言到起始代码的映射。
// 新建房间以及向空缓冲区切换语言时作为种子写入。
var Snippets = map[string]string{
	"javascript": "\nfunction greet(name) {\n\tconsole.log(\"Hello, \" + name + \"!\");\n}\n\ngreet(\"Alex\");\n",
	"typescript": "\ntype Params = {\n\tname: string;\n}\n\nfunction greet(data: Params) {\n\tconsole.log(\"Hello, \" + data.name + \"!\");\n}\n\ngreet({ name: \"Alex\" });\n",
	"python":     "import sys\n\ndef main():\n    print(\"Hello from Python!\")\n\nif __name__ == \"__main__\":\n    main()\n",
	"java":       "\npublic class HelloWorld {\n\tpublic static void main(String[] args) {\n\t\tSystem.out.println(\"Hello World\");\n\t}\n}\n",
	"csharp":     "using System;\n\nnamespace HelloWorld\n{\n\tclass Hello { \n\t\tstatic void Main(string[] args) {\n\t\t\tConsole.WriteLine(\"Hello World in C#\");\n\t\t}\n\t}\n}\n",
	"php":        "<?php\n\n$name = 'Alex';\necho $name;\n",
	"postgresql": "-- create a table\nCREATE TABLE users (\n    id SERIAL PRIMARY KEY,\n    name TEXT NOT NULL,\n    age INT\n);\n\n-- insert rows\nINSERT INTO users (name, age) VALUES ('Alice', 30), ('Bob', 25);\n\n-- query\nSELECT * FROM users;\n",
	"sqlite3":    "\n-- drop the table if it exists (for reruns)\nDROP TABLE IF EXISTS users;\n\n-- create a table\nCREATE TABLE users (\n  id INTEGER PRIMARY KEY, \n  name TEXT, \n  age INTEGER\n);\n\n-- insert rows\nINSERT INTO users (name, age) VALUES ('Alice', 30);\nINSERT INTO users (name, age) VALUES ('Bob', 25);\n\n-- query\nSELECT * FROM users;\n",
}

// StarterSnippet 返回语言的起始代码，未登记的语言返回空串。
func StarterSnippet(language string) string {
	return Snippets[language]
}
