package processor

import "talent-copilot/internal/agent"

// 提示词模板。占位符为 {name}，正文中不能出现其他花括号

var sqlTemplate = agent.Template{
	Name: "sql_generation",
	User: `You are an AI SQL expert. Convert the following natural language question into an SQL query.

Here is the database schema:
{schema}

- Ensure that any column names with spaces are enclosed in double quotes.
- Use standard SQL syntax.
- All the column name mention in the output should be in "" (Example- "Full Name","Email","Phone","Job Role",etc) and should be in db_schema format.
- For text make sure to use like operator.

Question: {question}
SQL Query:

- Only the output query should be displayed.`,
}

var resumeExtractionTemplate = agent.Template{
	Name: "resume_extraction",
	User: `Extract the following details from the resume text:
- Full Name
- Contact Information (Email, Phone)
- Job Description(Job Role)
- Education (Degree, Institute, Year)
- Work Experience (Company, Role, Duration, Technologies used)
- Skills (as a comma-separated list)
- Certifications (if any)
- Projects (Project Name, Description, Technologies used)

Resume Text:
{resume_text}

- Output the extracted details in JSON format.
- Strictly only display specified detail and subdetails which are asked in prompt
- If resume consist of University, Junior College, College, School consider it as Institute during the output`,
}

var questionTemplate = agent.Template{
	Name: "question_generation",
	User: `You are a senior technical interviewer preparing **structured interview questions** for a candidate with **{experience_level}** years of experience.
The questions must be strictly based on the candidate’s **skills** and **projects**. Adjust complexity based on experience.

Candidate Name: {candidate_name}
Skills: {skills}
Experience: {experience}
Projects: {projects}
Experience Level: {experience_level} years

📌 **Question Breakdown**:

1️⃣ **Project-based Questions** (2 Questions)
- Focus on **technical decision-making**, optimizations, or best practices used in projects.
- If **{experience_level} ≤ 1**, ask **basic technology choice** questions.
- If **{experience_level} between 2-10**, ask **scalability and performance** questions.
- If **{experience_level} ≥ 10**, ask **architecture and high-level strategy** questions.
- The **answer must be one word** (e.g., a tool, language, framework, or concept).
- What framework did you use for backend development?

2️⃣ **Coding Questions** (3 Questions)
- Real-world problem-solving, increasing in difficulty:
    - **Easy** (Basic logic or problem-solving)
    - **Easy-Moderate** (Data manipulation, algorithms, or sorting)
    - **Moderate/Hard** (Scalable real-world applications, system efficiency)
- **Difficulty Scaling**:
    - If **{experience_level} ≤ 1**, focus on **data structures, loops, conditions**.
    - If **{experience_level} between 2-10**, introduce **efficiency, scalability, and practical optimizations**.
    - If **{experience_level} ≥ 10**, focus on **large-scale system design, performance optimizations, and edge cases**.
- **No solution should exceed 100 lines of code**.
- **Do not specify any programming language**.
- **Question should not be based on specific programming language**.
- **Given prompt is only for reference do not generate same question**.
- Given a string, return a new string where each character is repeated the number of times equal to its position in the original string (1-based index). Example:Input: "abc" Output: "abbccc"

3️⃣ **Technical Fill-in-the-Blanks** (5 Questions)
- Must test applied **technical knowledge** from the candidate’s **skills**.
- **3 Easy, 2 Moderate-Hard** based on experience level.
- If **{experience_level} ≤ 1**, focus on **fundamentals** (definitions, syntax, simple concepts).
- If **{experience_level} between 2-10**, include **real-world implementation gaps**.
- If **{experience_level} ≥ 10**, test **optimization techniques, advanced architecture**.
- The **answer must be one word**.
- **Given prompt is only for reference do not generate same question**.
- The primary key in a relational database ensures __________.

⚠️ **Guidelines**:
- All questions must be **clear, practical, and aligned with the resume**.
- Avoid theoretical definitions – prioritize **applied knowledge**.
- Ensure diversity in topics (databases, APIs, algorithms, system design, scalability).
- No question should display answer after the question.
- Ensure that the output format should not display Easy, Easy-Moderate, Moderate/Hard after the question

🎯 **Output Format**:
Present the questions in a json format in the following order:

**Project-based Questions** - 2
**Fill-in-the-Blanks** - 5
**Coding Questions** - 3

- Generate diverse, unique questions strictly based on the above information.`,
}

var evaluationTemplate = agent.Template{
	Name: "answer_evaluation",
	User: `You are a senior technical interviewer evaluating a candidate’s responses. Analyze each response based on accuracy, clarity, and depth.

📌 **Evaluation Breakdown**:

1️⃣ **Project-Based Questions** (Technical Decision-Making)
- Assess whether the candidate’s answers reflect a solid understanding of their projects.
- Evaluate technical choices, optimizations, and best practices.

2️⃣ **Fill-in-the-Blanks** (Applied Knowledge)
- Check factual accuracy and relevance.
- Ensure the answers are **one-word** and align with industry standards.

3️⃣ **Coding Questions** (Problem-Solving & Implementation)
- Evaluate correctness, efficiency, and code quality.
- Evaluate based logic and do not consider syntax error like indentation,semi colon,brackets.
- Check if the solution is optimal and handles edge cases.
- Strictly check for logic not the format or the langauage used.

Candidate’s Responses:
{questions}

Candidate’s Answers:
{answers}

🎯 **Evaluation Format**:
- **Project Questions**: Score (0-1)
- **Fill-in-the-Blanks**: Score (0-1)
- **Coding Questions**: Score (0-5)
- Present score for each answer.

📝 **Final Feedback**:
- Performance summary across question types.

Output the evaluation in a **structured format** without explicitly mentioning these evaluation criteria.`,
}
